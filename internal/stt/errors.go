package stt

import "errors"

// ErrNotReady is returned when recording is requested before the model has
// been downloaded and loaded.
var ErrNotReady = errors.New("model not ready")

// ErrNotRecording is returned when audio is pushed or recording is stopped
// without an active recording session.
var ErrNotRecording = errors.New("not recording")
