package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-ini/ini"
	log "github.com/sirupsen/logrus"
)

// namespace matches the persisted-state layout's single NVS namespace
// name, here used as the backing file's base name. The teacher's own
// calnex/config package persists device configuration as real ini text
// via github.com/go-ini/ini; this store follows the same convention
// instead of inventing a bespoke on-disk format.
const namespace = "app_config.ini"

// Store is the mutex-guarded, process-wide configuration store. Getters
// return by value; setters serialize through a single mutex, per the
// concurrency model's "Config Store is guarded by its own mutex" rule.
type Store struct {
	mu   sync.Mutex
	path string
	cfg  Config
}

// Load populates a Store from defaults, then overlays whatever is present
// in the backing file at dir/app_config.ini. If the file exists but
// can't be parsed, the store wipes it and reinitializes with defaults,
// per the corruption-handling contract; Load only fails if even that
// wipe-and-reseed can't be written.
func Load(dir string) (*Store, error) {
	s := &Store{
		path: filepath.Join(dir, namespace),
		cfg:  Defaults(),
	}

	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			// Nothing persisted yet; defaults stand.
			return s, nil
		}
		log.Errorf("config: backing store unreadable, wiping and reinitializing: %v", err)
		return s, s.wipeAndReinit()
	}

	f, err := ini.Load(s.path)
	if err != nil {
		log.Errorf("config: backing store corrupt, wiping and reinitializing: %v", err)
		return s, s.wipeAndReinit()
	}

	section := f.Section(ini.DefaultSection)
	s.overlay(section)
	s.migrateDeviceMode(section)
	s.normalize()

	return s, nil
}

func (s *Store) wipeAndReinit() error {
	_ = os.Remove(s.path)
	s.cfg = Defaults()
	return s.saveAllLocked()
}

// migrateDeviceMode applies the migration rule: if device_mode is absent
// from the backing store, derive it from the legacy booleans, falling
// back to the compile-time default if both are false.
func (s *Store) migrateDeviceMode(section *ini.Section) {
	if section.HasKey(KeyDeviceMode) {
		return
	}
	usb := section.Key(keyEnableUsbSender).MustBool(false)
	spdif := section.Key(keyEnableSpdifSender).MustBool(false)
	switch {
	case usb:
		s.cfg.DeviceMode = SenderUsb
	case spdif:
		s.cfg.DeviceMode = SenderSpdif
	default:
		s.cfg.DeviceMode = DefaultDeviceMode
	}
}

func (s *Store) normalize() {
	applyDeviceModeInvariant(&s.cfg)
	clampVolume(&s.cfg)
	clampSpdifPin(&s.cfg)
}

// Snapshot returns a copy of the current configuration, suitable for the
// Lifecycle Controller's private delta-detection snapshot.
func (s *Store) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// GetTyped returns the named option's current value. Keys that aren't
// recognized options return (nil, false); recognized keys always return
// a value (their default if nothing else was set).
func (s *Store) GetTyped(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getField(&s.cfg, key)
}

// Set updates a single option in memory and commits it by rewriting the
// whole backing file with the updated configuration; there is no
// per-key write. On any validation or I/O error, the in-memory value is
// left unchanged.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trial := s.cfg
	if err := setField(&trial, key, value); err != nil {
		return err
	}
	applyDeviceModeInvariant(&trial)
	clampVolume(&trial)
	clampSpdifPin(&trial)

	prev := s.cfg
	s.cfg = trial
	if err := s.saveAllLocked(); err != nil {
		s.cfg = prev
		return err
	}
	return nil
}

// SaveAll atomically commits the entire current configuration.
func (s *Store) SaveAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAllLocked()
}

func (s *Store) saveAllLocked() error {
	f := ini.Empty()
	section := f.Section(ini.DefaultSection)
	for key, value := range toMap(&s.cfg) {
		section.Key(key).SetValue(iniString(value))
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	if err := f.SaveTo(s.path); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

// ResetToDefaults erases the namespace and re-seeds compile-time
// defaults.
func (s *Store) ResetToDefaults() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = Defaults()
	return s.saveAllLocked()
}

// BatchUpdate applies every (key, value) pair in updates as a single
// atomic commit. All keys are validated before anything is written; if
// any key is invalid, nothing changes.
func (s *Store) BatchUpdate(updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trial := s.cfg
	for k, v := range updates {
		if err := setField(&trial, k, v); err != nil {
			return fmt.Errorf("config: batch update key %q: %w", k, err)
		}
	}
	applyDeviceModeInvariant(&trial)
	clampVolume(&trial)
	clampSpdifPin(&trial)

	s.cfg = trial
	return s.saveAllLocked()
}

func (s *Store) overlay(section *ini.Section) {
	for _, k := range section.Keys() {
		v, err := iniValue(k.Name(), k.Value())
		if err != nil {
			continue
		}
		_ = setField(&s.cfg, k.Name(), v)
	}
}
