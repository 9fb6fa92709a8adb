package imagesearch_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"lumina/pkg/imagesearch"
)

func ExampleImageSearchService_Search() {
	// Configure the image search service
	config := imagesearch.Config{
		APIKey: os.Getenv("PEXELS_API_KEY"),
	}

	searchService := imagesearch.NewImageSearchService(config)

	photo, err := searchService.Search(context.Background(), "volcano")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s by %s\n", photo.URL, photo.Photographer)
}
