package models

// GuidelineRecord is one question/answer pair of the guideline corpus.
// Its position in the records array equals its position in the shared vector index.
type GuidelineRecord struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// GuidelineHit is a retrieved record with its squared Euclidean distance to the query.
type GuidelineHit struct {
	Position int             `json:"position"`
	Record   GuidelineRecord `json:"record"`
	Distance float32         `json:"distance"`
}

// IndexStatus reports the state of the shared guideline index.
type IndexStatus struct {
	Ready      bool   `json:"ready"`
	Name       string `json:"name"`
	Records    int    `json:"records"`
	Vectors    int    `json:"vectors"`
	Dimensions int    `json:"dimensions"`
}
