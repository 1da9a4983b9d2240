package model

// KnowledgeItem is a skill or concept extracted from exercises.
// Embedding, when present, is the embedding of Description.
type KnowledgeItem struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Exercises   []string  `json:"exercises,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// Key is the identity used in the decision graph: ID when set, otherwise Name.
func (k KnowledgeItem) Key() string {
	if k.ID != "" {
		return k.ID
	}
	return k.Name
}

// Cluster is one canonical knowledge item after deduplication.
type Cluster struct {
	ID            string   `json:"id"`
	CanonicalName string   `json:"canonical_name"`
	Members       []string `json:"members"`
}
