package models

import "encoding/json"

// Video is one candidate video from the search service
type Video struct {
	VideoID string `json:"videoId"`
	Title   string `json:"title"`
}

// VideosJSON renders candidates as the JSON list the selection prompt embeds.
func VideosJSON(videos []Video) (string, error) {
	encoded, err := json.Marshal(videos)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
