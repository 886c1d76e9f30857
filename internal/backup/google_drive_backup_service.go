package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mvasic/vitalog/internal/activities"
	"github.com/mvasic/vitalog/internal/telemetry/metrics"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	rootBackupsFolderName   = "vitalog-backup"
	activitiesFileChunkSize = 500 // number of activities in one backup file
	driveFolderMimeType     = "application/vnd.google-apps.folder"
	driveBackupFileMimeType = "application/vnd.google-apps.file"
)

type activitiesSource interface {
	ListAll(ctx context.Context, params activities.ActivityParams) ([]activities.Activity, error)
}

// GoogleDriveBackupService exports activity logs as JSON files to a
// dedicated folder on google drive. Backups are incremental, only the
// activities created after the last backup file get exported.
type GoogleDriveBackupService struct {
	activitiesRepo  activitiesSource
	service         *drive.Service
	backupsFolderId string
	ownerEmail      string
	metrics         *metrics.Manager
}

func NewGoogleDriveBackupService(
	ctx context.Context,
	credentialsJson []byte,
	ownerEmail string,
	activitiesRepo activitiesSource,
	metricsManager *metrics.Manager,
) (*GoogleDriveBackupService, error) {
	driveService, err := drive.NewService(ctx, option.WithCredentialsJSON(credentialsJson))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve drive client: %w", err)
	}

	rootFolderQuery := fmt.Sprintf(
		"mimeType = '%s' and trashed = false and name = '%s'",
		driveFolderMimeType, rootBackupsFolderName,
	)
	backupsFolder, err := driveService.
		Files.List().
		Q(rootFolderQuery).
		Fields("files(id, name)").
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve files: %w", err)
	}

	backupsFolderId := ""
	switch len(backupsFolder.Files) {
	case 0:
		log.Println("root backups folder not found, will recreate")
	case 1:
		rbf := backupsFolder.Files[0]
		log.Printf("root backups folder found, %s: %s", rbf.Name, rbf.Id)
		backupsFolderId = rbf.Id
	default:
		rbf := backupsFolder.Files[0]
		log.Printf("attention: found %d root backups folders, will take the first one: %s", len(backupsFolder.Files), rbf.Id)
		backupsFolderId = rbf.Id
	}

	s := &GoogleDriveBackupService{
		activitiesRepo: activitiesRepo,
		service:        driveService,
		ownerEmail:     ownerEmail,
		metrics:        metricsManager,
	}

	if backupsFolderId == "" {
		backupsFolderId, err = s.createRootBackupsFolder()
		if err != nil {
			return nil, fmt.Errorf("failed to create root backups folder: %w", err)
		}
		log.Printf("new root backups folder created: %s", backupsFolderId)
	}

	s.backupsFolderId = backupsFolderId

	return s, nil
}

// Reinit drops the whole backups folder and makes a fresh full backup
func (s *GoogleDriveBackupService) Reinit(ctx context.Context, baseTime time.Time) error {
	log.Println("activities backup reinit starting ...")

	err := s.service.Files.
		Delete(s.backupsFolderId).
		Do()
	if err != nil {
		return err
	}

	backupsFolderId, err := s.createRootBackupsFolder()
	if err != nil {
		return fmt.Errorf("failed to create root backups folder: %w", err)
	}

	log.Printf("new root backups folder created: %s", backupsFolderId)

	s.backupsFolderId = backupsFolderId

	return s.DoBackup(ctx, baseTime)
}

func (s *GoogleDriveBackupService) DoBackup(ctx context.Context, baseTime time.Time) error {
	backupStart := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.CounterActivityBackups.Inc()
			s.metrics.HistActivityBackupDuration.Observe(time.Since(backupStart).Seconds())
		}
	}()

	currentBackupFiles, err := s.getBackupFiles(s.backupsFolderId)
	if err != nil {
		return err
	}

	if len(currentBackupFiles) == 0 {
		log.Println("backups empty, creating initial backup file ...")
		if err := s.createInitialBackupFile(ctx, baseTime); err != nil {
			return err
		}
		log.Println("initial backup files created!")
		return nil
	}

	log.Println("current backup files:")
	lastCreatedAt := time.Time{}
	for _, file := range currentBackupFiles {
		createdAt, err := time.Parse(time.RFC3339, file.CreatedTime)
		if err != nil {
			log.Printf(" ---> error parsing created at for file %s: %s", file.Name, err)
			continue
		}
		log.Printf(" -- [%v]: %s (%s)\n", createdAt, file.Name, file.Id)

		if createdAt.After(lastCreatedAt) {
			lastCreatedAt = createdAt
		}
	}

	// cursor on created_at, not the activity date: entries are often
	// backdated and would otherwise slip between two backup runs
	activitiesToBackup, err := s.activitiesRepo.ListAll(ctx, activities.ActivityParams{
		CreatedFrom: &lastCreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to get next backup activities: %w", err)
	}

	if len(activitiesToBackup) == 0 {
		log.Println("no new activities to backup, done")
		return nil
	}

	log.Printf(" ---- backing up %d activities since %v", len(activitiesToBackup), lastCreatedAt)

	baseBackupFileName := fmt.Sprintf("activities-%d-%d-%d", baseTime.Day(), baseTime.Month(), baseTime.Year())
	nextBackupFileName := nextFreeBackupFileName(baseBackupFileName, currentBackupFiles)

	if err := s.backupActivities(activitiesToBackup, nextBackupFileName); err != nil {
		return fmt.Errorf("failed to backup activities: %w", err)
	}

	log.Printf("next backup since %v successfully saved: %s", lastCreatedAt, nextBackupFileName)

	return nil
}

// nextFreeBackupFileName returns a base name whose chunk files
// (<base>_<chunk>.json) collide with none of the existing backup files.
// Repeated backups on the same day get a _2, _3 ... suffix.
func nextFreeBackupFileName(baseFileName string, existingFiles []*drive.File) string {
	candidate := baseFileName
	for counter := 2; ; counter++ {
		taken := false
		for _, file := range existingFiles {
			if strings.HasPrefix(file.Name, candidate+"_") {
				taken = true
				break
			}
		}
		if !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", baseFileName, counter)
	}
}

func (s *GoogleDriveBackupService) createRootBackupsFolder() (string, error) {
	backupsFolderMeta := &drive.File{
		Name:     rootBackupsFolderName,
		MimeType: driveFolderMimeType,
	}

	bfRes, err := s.service.
		Files.Create(backupsFolderMeta).
		Fields("id").
		Do()
	if err != nil {
		return "", err
	}

	if pId, err := s.updateFilePermission(bfRes.Id); err != nil {
		return bfRes.Id, fmt.Errorf("failed to create additional permission for root backup folder: %s", err)
	} else {
		log.Printf("permission %s created for root backup folder %s", pId, bfRes.Id)
	}

	return bfRes.Id, nil
}

func (s *GoogleDriveBackupService) createInitialBackupFile(ctx context.Context, baseTime time.Time) error {
	allActivities, err := s.activitiesRepo.ListAll(ctx, activities.ActivityParams{})
	if err != nil {
		return fmt.Errorf("failed to get activities from db: %w", err)
	}

	log.Printf("initial backup of %d activities starting ...", len(allActivities))

	baseFileName := fmt.Sprintf("initial-%d-%d-%d", baseTime.Day(), baseTime.Month(), baseTime.Year())
	if err := s.backupActivities(allActivities, baseFileName); err != nil {
		return fmt.Errorf("failed to backup activities: %w", err)
	}

	return nil
}

func (s *GoogleDriveBackupService) backupActivities(acts []activities.Activity, baseFileName string) error {
	chunks := len(acts) / activitiesFileChunkSize
	fromIndex, toIndex := 0, activitiesFileChunkSize
	if len(acts)%activitiesFileChunkSize > 0 {
		chunks++
	}

	if len(acts) < activitiesFileChunkSize {
		toIndex = len(acts)
	}

	for i := 1; i <= chunks; i++ {
		nextFileName := fmt.Sprintf("%s_%d.json", baseFileName, i)
		nextActivities := acts[fromIndex:toIndex]

		log.Printf("%s: create backup file with %d activities [from %d to %d] ...", nextFileName, len(nextActivities), fromIndex, toIndex)

		nextActivitiesJson, err := json.Marshal(nextActivities)
		if err != nil {
			return fmt.Errorf("%s failed to marshal activities: %w", nextFileName, err)
		}

		log.Printf("%s: creating file on google drive ...", nextFileName)
		fileMeta := &drive.File{
			Name:     nextFileName,
			MimeType: driveBackupFileMimeType,
			Parents:  []string{s.backupsFolderId},
		}

		nextBackupChunkFile, err := s.service.
			Files.Create(fileMeta).
			Fields("id, parents").
			Media(bytes.NewReader(nextActivitiesJson)).
			Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create activities backup file: %w", nextFileName, err)
		}

		permissionId, err := s.updateFilePermission(nextBackupChunkFile.Id)
		if err != nil {
			return fmt.Errorf("%s: failed to create additional permission: %s", nextFileName, err)
		}

		log.Printf("%s: backup file [%s] [permission %s] saved: %s", nextFileName, fileMeta.Name, permissionId, nextBackupChunkFile.Id)

		fromIndex = toIndex
		toIndex = toIndex + activitiesFileChunkSize
		if toIndex >= len(acts) {
			toIndex = len(acts)
		}
	}

	return nil
}

// DestroyAllFiles removes every file visible to the service account.
// Used from the backups cmd only, behind an explicit flag.
func DestroyAllFiles(ctx context.Context, credentialsJson []byte) error {
	driveService, err := drive.NewService(ctx, option.WithCredentialsJSON(credentialsJson))
	if err != nil {
		return fmt.Errorf("unable to retrieve drive client: %w", err)
	}

	allFiles, err := driveService.
		Files.List().
		Fields("files(id, name)").
		Do()
	if err != nil {
		return fmt.Errorf("unable to retrieve files: %w", err)
	}

	for _, file := range allFiles.Files {
		if err := driveService.Files.Delete(file.Id).Do(); err != nil {
			log.Printf("failed to delete file %s (%s): %s", file.Name, file.Id, err)
			continue
		}
		log.Printf("deleted: %s (%s)", file.Name, file.Id)
	}

	return nil
}

func (s *GoogleDriveBackupService) updateFilePermission(fileId string) (string, error) {
	permission := &drive.Permission{
		EmailAddress: s.ownerEmail,
		Type:         "user",
		Role:         "reader",
	}

	createdPermission, err := s.service.Permissions.
		Create(fileId, permission).
		Do()
	if err != nil {
		return "", err
	}

	return createdPermission.Id, nil
}

func (s *GoogleDriveBackupService) getBackupFiles(backupsFolderId string) ([]*drive.File, error) {
	backupsQuery := fmt.Sprintf(
		"'%s' in parents and mimeType != '%s' and trashed = false",
		backupsFolderId, driveFolderMimeType,
	)
	backups, err := s.service.
		Files.List().
		Q(backupsQuery).
		Fields("files(id, name, createdTime)").
		Do()
	if err != nil {
		return nil, err
	}

	return backups.Files, nil
}
