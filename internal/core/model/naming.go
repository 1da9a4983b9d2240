package model

// CommunityName is the JSON an LLM returns when naming a cluster.
type CommunityName struct {
	Name string `json:"name"`
}
