// Command seed loads users, reason codes and emission factors into the database.
// It is safe to run repeatedly.
package main

import (
	"context"
	"flag"
	"os"

	"ghg-workflow-backend/internal/config"
	"ghg-workflow-backend/internal/infrastructure/database"
	"ghg-workflow-backend/internal/seed"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	file := flag.String("file", "", "seed YAML file; the embedded default is used when empty")
	password := flag.String("password", "", "override the default password of seeded users")
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}

	data := seed.Default
	if *file != "" {
		if data, err = os.ReadFile(*file); err != nil {
			log.Fatal().Err(err).Str("file", *file).Msg("read seed file")
		}
	}
	f, err := seed.Parse(data)
	if err != nil {
		log.Fatal().Err(err).Msg("parse seed file")
	}
	if *password != "" {
		f.DefaultPassword = *password
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	res, err := seed.Apply(context.Background(), db, f)
	if err != nil {
		log.Fatal().Err(err).Msg("seed")
	}
	log.Info().Int("users", res.Users).Int("reason_codes", res.ReasonCodes).Int("criteria", res.Criteria).Int("factors", res.Factors).Msg("seed complete")
}
