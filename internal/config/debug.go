package config

import "os"

func IsDebug() bool {
	return os.Getenv("RPGAI_DEBUG") == "1"
}

func IsJSONLog() bool {
	return os.Getenv("RPGAI_LOG_FORMAT") == "json"
}
