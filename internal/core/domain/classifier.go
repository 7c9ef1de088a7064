package domain

type Prediction struct {
	Label      string  `json:"label"`
	Index      int     `json:"index"`
	Confidence float64 `json:"confidence"`
}

type IndexDoc struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type SimilarHit struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
	Snippet    string  `json:"snippet"`
}
