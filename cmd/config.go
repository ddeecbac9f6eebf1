package main

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	AdminPrincipal string `env:"ADMIN_PRINCIPAL,required=true"`
	Host           string `env:"HOST,default=localhost"`
	Port           int    `env:"PORT,default=8080"`
	// DebugPort enables the read-only inspect server when set.
	DebugPort int `env:"DEBUG_PORT"`
	// CompatEmptyExpirableError restores the legacy behavior of failing
	// an expirable read when the filtered result is empty.
	CompatEmptyExpirableError bool `env:"COMPAT_EMPTY_EXPIRABLE_ERROR,default=false"`
}
