package env

import (
	"os"

	"github.com/rs/zerolog"
)

func GetVariableOrDefault(log zerolog.Logger, name, defaultValue string) string {
	value, ok := os.LookupEnv(name)
	if !ok {
		return defaultValue
	}
	return value
}

func GetVariableOrDie(log zerolog.Logger, name, description string) string {
	value, ok := os.LookupEnv(name)
	if !ok {
		log.Fatal().Msgf("please set %s to a valid %s", name, description)
	}
	return value
}
