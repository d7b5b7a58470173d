package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/storage"
	"github.com/makr91/zoneweaver-api/pkg/types"
	bolt "go.etcd.io/bbolt"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "backup":
		err = runBackup(os.Args[2:])
	case "compact":
		err = runCompact(os.Args[2:])
	case "prune":
		err = runPrune(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("%v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "zoneweaver-dbtool - maintenance operations on zoneweaverd's bbolt database")
	fmt.Fprintln(os.Stderr, "\nUsage:")
	fmt.Fprintln(os.Stderr, "  zoneweaver-dbtool backup --data-dir DIR --out FILE")
	fmt.Fprintln(os.Stderr, "  zoneweaver-dbtool compact --data-dir DIR")
	fmt.Fprintln(os.Stderr, "  zoneweaver-dbtool prune --data-dir DIR [--completed 168h] [--failed 720h]")
}

func runBackup(args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	dataDir := fs.String("data-dir", "/var/lib/zoneweaver", "zoneweaverd data directory")
	out := fs.String("out", "", "destination path (default: <data-dir>/zoneweaverd.db.backup)")
	fs.Parse(args)

	dbPath := filepath.Join(*dataDir, "zoneweaverd.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database not found at %s", dbPath)
	}

	dest := *out
	if dest == "" {
		dest = dbPath + ".backup"
	}

	log.Printf("Backing up %s -> %s", dbPath, dest)
	if err := copyFile(dbPath, dest); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	log.Println("✓ Backup created successfully")
	return nil
}

// runCompact rewrites the database into a fresh file with no free-list
// fragmentation, then swaps it into place. A backup is always taken
// first, mirroring warren-migrate's backup-before-write discipline.
func runCompact(args []string) error {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	dataDir := fs.String("data-dir", "/var/lib/zoneweaver", "zoneweaverd data directory")
	fs.Parse(args)

	dbPath := filepath.Join(*dataDir, "zoneweaverd.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database not found at %s", dbPath)
	}

	backupPath := dbPath + ".backup"
	log.Printf("Creating backup: %s", backupPath)
	if err := copyFile(dbPath, backupPath); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	srcDB, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer srcDB.Close()

	tmpPath := dbPath + ".compact"
	os.Remove(tmpPath)
	dstDB, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open compaction target: %w", err)
	}

	var bucketCount, keyCount int
	err = srcDB.View(func(srcTx *bolt.Tx) error {
		return dstDB.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				bucketCount++
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return fmt.Errorf("failed to create bucket %s: %w", name, err)
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					keyCount++
					return dstBucket.Put(k, v)
				})
			})
		})
	})
	dstDB.Close()
	srcDB.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("compaction failed: %w", err)
	}

	if err := os.Rename(tmpPath, dbPath); err != nil {
		return fmt.Errorf("failed to swap compacted database into place: %w", err)
	}

	log.Printf("✓ Compacted %d buckets, %d keys", bucketCount, keyCount)
	return nil
}

// runPrune deletes completed, failed and cancelled task rows and closed
// log-session rows older than the given retention windows, for ad-hoc
// operator use. Its completed/failed defaults match the scheduler's
// cleanup loop, which deletes only completed and failed tasks.
func runPrune(args []string) error {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	dataDir := fs.String("data-dir", "/var/lib/zoneweaver", "zoneweaverd data directory")
	completedAge := fs.Duration("completed", 7*24*time.Hour, "delete completed tasks older than this")
	failedAge := fs.Duration("failed", 30*24*time.Hour, "delete failed/cancelled tasks older than this")
	fs.Parse(args)

	store, err := storage.NewBoltStore(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	now := time.Now()
	completedCutoff := now.Add(-*completedAge).Unix()
	failedCutoff := now.Add(-*failedAge).Unix()

	n, err := store.DeleteTasksOlderThan(types.TaskCompleted, completedCutoff)
	if err != nil {
		return fmt.Errorf("failed to prune completed tasks: %w", err)
	}
	log.Printf("✓ Removed %d completed tasks older than %s", n, completedAge)

	n, err = store.DeleteTasksOlderThan(types.TaskFailed, failedCutoff)
	if err != nil {
		return fmt.Errorf("failed to prune failed tasks: %w", err)
	}
	log.Printf("✓ Removed %d failed tasks older than %s", n, failedAge)

	n, err = store.DeleteTasksOlderThan(types.TaskCancelled, failedCutoff)
	if err != nil {
		return fmt.Errorf("failed to prune cancelled tasks: %w", err)
	}
	log.Printf("✓ Removed %d cancelled tasks older than %s", n, failedAge)

	sessionCutoff := completedCutoff
	n, err = store.DeleteLogSessionsOlderThan(types.LogSessionClosed, sessionCutoff)
	if err != nil {
		return fmt.Errorf("failed to prune closed log sessions: %w", err)
	}
	log.Printf("✓ Removed %d closed log sessions older than %s", n, completedAge)

	return nil
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}
