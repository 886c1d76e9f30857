package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mvasic/vitalog/internal/activities"
	"github.com/mvasic/vitalog/internal/backup"
	"github.com/mvasic/vitalog/internal/db"

	"gopkg.in/natefinch/lumberjack.v2"
)

// activities google drive backup cmd

func main() {
	credentialsFile := flag.String(
		"gd-creds",
		"./vitalog-drive-credentials.json",
		"google drive service account credentials json",
	)
	ownerEmail := flag.String("owner-email", "", "email of the drive account that gets reader access to backup files")
	dbHost := flag.String("db-host", "localhost", "postgres host")
	dbPort := flag.String("db-port", "5432", "postgres port")
	dbName := flag.String("db-name", "vitalog", "postgres database name")
	logsPath := flag.String("logs-path", "/var/log/vitalog/activities-backup.log", "backup logs file path (empty for stdout)")
	reinit := flag.Bool("reinit", false, "drop the backups folder and make a fresh full backup")
	destroy := flag.Bool("destroy", false, "destroy all files (warning!!) (try running more times, if more than 100 files are present)")

	flag.Parse()

	loggingSetup(*logsPath)

	log.Println("starting activities backup ...")

	if *credentialsFile == "" {
		log.Fatalln("google drive credentials json not specified")
	}
	if *reinit {
		log.Println("!! attention: will reinitialize all again...")
	}

	credentialsFileBytes, err := os.ReadFile(*credentialsFile)
	if err != nil {
		log.Fatalf("unable to read client secret file: %v", err)
	}

	ctx := context.Background()

	if *destroy {
		if err := backup.DestroyAllFiles(ctx, credentialsFileBytes); err != nil {
			log.Fatalf("destroy failed: %s", err)
		}
		log.Println("destroy done!")
		return
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost: *dbHost,
		DBPort: *dbPort,
		DBName: *dbName,
	})
	if err != nil {
		log.Fatalf("failed to create db pool: %s", err)
	}
	defer dbPool.Close()

	s, err := backup.NewGoogleDriveBackupService(
		ctx,
		credentialsFileBytes,
		*ownerEmail,
		activities.NewRepo(dbPool),
		nil,
	)
	if err != nil {
		log.Fatalf("failed to create google drive backup service: %s", err)
	}

	baseTime := time.Now()

	if *reinit {
		if err := s.Reinit(ctx, baseTime); err != nil {
			log.Fatalf("reinit failed: %s", err)
		}
		log.Println("reinit done")
		return
	}

	if err := s.DoBackup(ctx, baseTime); err != nil {
		log.Fatalf("%+v", err)
	}
}

func loggingSetup(logFileName string) {
	if logFileName == "" {
		log.SetOutput(os.Stdout)
		return
	}

	if !strings.HasSuffix(logFileName, ".log") {
		logFileName += ".log"
	}

	log.SetOutput(&lumberjack.Logger{
		Filename:  logFileName,
		MaxSize:   50,    // megabytes
		LocalTime: false, // false -> use UTC
		Compress:  true,  // disabled by default
	})
}
