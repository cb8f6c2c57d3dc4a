package models

// Link is one entry of a static link catalog: a URL plus a one-sentence
// description generated offline by cmd/cataloggen.
type Link struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}
