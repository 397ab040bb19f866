package utils

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"
)

// SafeJSONParse parses JSON safely
func SafeJSONParse(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// LogError logs an error with context if it's not nil
func LogError(err error, context string) {
	if err != nil {
		log.WithField("context", context).Error(err)
	}
}
