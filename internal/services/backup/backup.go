package backup

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/econsulaire/portal/internal/config"
)

// Service produces and restores PostgreSQL dumps with the pg_dump and
// pg_restore binaries. Dumps use the custom format so restores can be
// selective.
type Service struct {
	db  config.DatabaseConfig
	dir string
}

func New(db config.DatabaseConfig, dir string) *Service {
	return &Service{db: db, dir: dir}
}

// Info describes one backup file on disk.
type Info struct {
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Create runs pg_dump and writes a timestamped dump file. Returns the
// filename of the new backup.
func (s *Service) Create() (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("econsulaire_%s.dump", time.Now().Format("20060102_150405"))
	path := filepath.Join(s.dir, filename)

	cmd := exec.Command("pg_dump",
		"--format=custom",
		"--host", s.db.Host,
		"--port", s.db.Port,
		"--username", s.db.Username,
		"--dbname", s.db.Database,
		"--file", path,
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+s.db.Password)

	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("pg_dump: %v: %s", err, strings.TrimSpace(string(out)))
	}

	log.Printf("💾 Backup created: %s", filename)
	return filename, nil
}

// Restore replays a dump produced by Create. The filename must name a file
// inside the backup directory.
func (s *Service) Restore(filename string) error {
	if filepath.Base(filename) != filename {
		return fmt.Errorf("invalid backup filename: %s", filename)
	}
	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup not found: %s", filename)
	}

	cmd := exec.Command("pg_restore",
		"--clean",
		"--if-exists",
		"--host", s.db.Host,
		"--port", s.db.Port,
		"--username", s.db.Username,
		"--dbname", s.db.Database,
		path,
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+s.db.Password)

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pg_restore: %v: %s", err, strings.TrimSpace(string(out)))
	}

	log.Printf("💾 Backup restored: %s", filename)
	return nil
}

// List returns the backups on disk, newest first.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, err
	}

	var backups []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dump") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Filename:  entry.Name(),
			SizeBytes: fi.Size(),
			CreatedAt: fi.ModTime(),
		})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].CreatedAt.After(backups[j].CreatedAt) })
	return backups, nil
}

// Delete removes one backup file.
func (s *Service) Delete(filename string) error {
	if filepath.Base(filename) != filename {
		return fmt.Errorf("invalid backup filename: %s", filename)
	}
	return os.Remove(filepath.Join(s.dir, filename))
}
