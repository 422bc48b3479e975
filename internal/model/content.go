package model

import "time"

// HeroSettings is the singleton banner row shown on the landing page.
// Admins edit it; the text is rendered verbatim.
type HeroSettings struct {
    ID         string    `json:"id"`
    Title      string    `json:"title"`
    Subtitle   string    `json:"subtitle"`
    ButtonText string    `json:"button_text"`
    ImageURL   string    `json:"image_url"`
    UpdatedAt  time.Time `json:"updated_at"`
}

// Guidelines is the singleton free-text donation guidelines row.
type Guidelines struct {
    ID        string    `json:"id"`
    Content   string    `json:"content"`
    UpdatedAt time.Time `json:"updated_at"`
}
