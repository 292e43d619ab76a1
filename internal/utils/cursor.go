package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

type BookCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

type RequestCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

func EncodeBookCursor(createdAt time.Time, id string) (string, error) {
	b, err := json.Marshal(BookCursor{CreatedAt: createdAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeBookCursor(cursor string) (BookCursor, error) {
	if cursor == "" {
		return BookCursor{}, errors.New("empty cursor")
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return BookCursor{}, err
	}

	var c BookCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return BookCursor{}, err
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return BookCursor{}, errors.New("invalid cursor payload")
	}
	return c, nil
}

func EncodeRequestCursor(createdAt time.Time, id string) (string, error) {
	b, err := json.Marshal(RequestCursor{CreatedAt: createdAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeRequestCursor(cursor string) (RequestCursor, error) {
	if cursor == "" {
		return RequestCursor{}, errors.New("empty cursor")
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return RequestCursor{}, err
	}
	var c RequestCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return RequestCursor{}, err
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return RequestCursor{}, errors.New("invalid cursor payload")
	}
	return c, nil
}
