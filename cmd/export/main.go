package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/config"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/db"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/export"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	configPath := flag.String("config", os.Getenv("PORTAL_CONFIG_PATH"), "path to config.yaml")
	fromFlag := flag.String("from", "", "first day to export (YYYY-MM-DD), defaults to today")
	toFlag := flag.String("to", "", "last day to export (YYYY-MM-DD), defaults to from + 30 days")
	outPath := flag.String("out", "bookings.xlsx", "output workbook")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	loc := cfg.Location()

	from := time.Now().In(loc)
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	if *fromFlag != "" {
		if from, err = time.ParseInLocation("2006-01-02", *fromFlag, loc); err != nil {
			logger.Fatal().Err(err).Msg("invalid -from")
		}
	}
	to := from.AddDate(0, 0, 30)
	if *toFlag != "" {
		if to, err = time.ParseInLocation("2006-01-02", *toFlag, loc); err != nil {
			logger.Fatal().Err(err).Msg("invalid -to")
		}
	}
	to = to.AddDate(0, 0, 1)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	bookings, err := database.ListBookings(ctx, from, to)
	if err != nil {
		logger.Fatal().Err(err).Msg("list bookings")
	}

	f, err := os.Create(*outPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("create output")
	}
	defer f.Close()
	if err := export.Bookings(f, bookings, loc); err != nil {
		logger.Fatal().Err(err).Msg("write workbook")
	}
	logger.Info().Int("bookings", len(bookings)).Str("out", *outPath).Msg("export complete")
}
