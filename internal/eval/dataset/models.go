package dataset

import "strings"

// TitlePages is how many leading pages are searched for the title page
const TitlePages = 10

// PageBreak separates pages in the text handed to the extractor
const PageBreak = "\n\n---PAGE BREAK---\n\n"

// Record is one book from the Institutional Books 1.0 dataset, reduced to
// the columns the extractor evaluation reads.
// Dataset: https://huggingface.co/datasets/instdin/institutional-books-1.0
type Record struct {
	BarcodeSource string `json:"barcode_src" parquet:"barcode_src"`

	// ground truth
	TitleSource       string      `json:"title_src" parquet:"title_src"`
	AuthorSource      string      `json:"author_src" parquet:"author_src"`
	LanguageSource    string      `json:"language_src" parquet:"language_src"`
	IdentifiersSource Identifiers `json:"identifiers_src" parquet:"identifiers_src"`

	// OCR text, original and post-processed
	TextByPageSource []string `json:"text_by_page_src" parquet:"text_by_page_src,list"`
	TextByPageGen    []string `json:"text_by_page_gen" parquet:"text_by_page_gen,list"`

	PageCountSource int `json:"page_count_src" parquet:"page_count_src"`
}

// Identifiers contains bibliographic identifiers
type Identifiers struct {
	LCCN []string `json:"lccn" parquet:"lccn,list"`
	ISBN []string `json:"isbn" parquet:"isbn,list"`
	OCLC []string `json:"ocolc" parquet:"ocolc,list"`
}

// TitlePageText joins the first TitlePages pages, preferring the
// post-processed text when the record has it.
func (r *Record) TitlePageText() string {
	pages := r.TextByPageGen
	if len(pages) == 0 {
		pages = r.TextByPageSource
	}
	if len(pages) > TitlePages {
		pages = pages[:TitlePages]
	}

	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p)
		b.WriteString(PageBreak)
	}
	return b.String()
}

// ISBN returns the first ISBN if available
func (r *Record) ISBN() string {
	if len(r.IdentifiersSource.ISBN) > 0 {
		return r.IdentifiersSource.ISBN[0]
	}
	return ""
}
