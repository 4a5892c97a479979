package models

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotConnected = errors.New("transport not connected")
)
