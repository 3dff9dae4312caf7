package models

import "github.com/pkg/errors"

// ErrMalformedUplink is returned when mandatory uplink fields are missing.
var ErrMalformedUplink = errors.New("malformed request: any of [dev_id, app_id, payload_fields, payload_raw] is missing")
