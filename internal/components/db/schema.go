package db

import _ "embed"

//go:embed schema.sql
var Schema string

// SessionKey is the slot holding the serialized capture session.
const SessionKey = "txexport.session"
