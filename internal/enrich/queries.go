package enrich

import "fmt"

// BasicQuery is the keyword query for headline company facts.
func BasicQuery(name string) string {
	return fmt.Sprintf("%s company information revenue employees founded headquarters", name)
}

// NewsQuery is the query for the company's recent news.
func NewsQuery(name string) string {
	return fmt.Sprintf("%s company news last year", name)
}

// DeepQuery is the query sent to the advanced provider.
func DeepQuery(name string) string {
	return fmt.Sprintf("%s company detailed analysis competitors technologies industry market position", name)
}
