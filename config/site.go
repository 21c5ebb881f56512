package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"dawam/internal/models"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const siteDebounce = 200 * time.Millisecond

// siteFile is the YAML layout of the work-site override file
type siteFile struct {
	Site models.WorkSite `yaml:"site"`
}

// LoadSite reads a work site from a YAML file such as:
//
//	site:
//	  latitude: 24.7136
//	  longitude: 46.6753
//	  radius_km: 0.5
func LoadSite(path string) (models.WorkSite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.WorkSite{}, fmt.Errorf("read site file: %w", err)
	}
	var f siteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return models.WorkSite{}, fmt.Errorf("parse site file: %w", err)
	}
	return f.Site, nil
}

// WatchSite calls apply with the parsed file every time it changes, until ctx is cancelled.
// Editors often replace files instead of writing them, so the parent directory is watched.
func WatchSite(ctx context.Context, path string, apply func(models.WorkSite) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer w.Close()
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				pending = time.After(siteDebounce)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("Warning: site watcher error: %v", err)
			case <-pending:
				pending = nil
				site, err := LoadSite(abs)
				if err != nil {
					log.Printf("Warning: ignoring site file change: %v", err)
					continue
				}
				if err := apply(site); err != nil {
					log.Printf("Warning: site file rejected: %v", err)
					continue
				}
				log.Printf("🔄 Work site reloaded from %s", abs)
			}
		}
	}()
	return nil
}
