package titleindex

// Posting is one document's normalized TF-IDF weight for a term.
type Posting struct {
	Doc    int
	Weight float64
}

// PostingList is ordered by ascending Doc.
type PostingList []Posting

// Hit is a scored document; Doc is the position of the title passed to Build.
type Hit struct {
	Doc   int     `json:"doc"`
	Score float64 `json:"score"`
}
