package ext2

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"

	"golang.org/x/sync/semaphore"

	"kernix/ustr"
)

// fuzzConcurrency bounds how many temp-file-backed scratch disks are open
// at once, mirroring how a CI matrix bounds concurrent test VMs rather
// than spawning one unbounded goroutine per image.
const fuzzConcurrency = 4

// TestConcurrentMountFuzz builds and mounts a batch of randomly-shaped
// scratch ext2 images concurrently and reads every file back, exercising
// Format and Mount against each other under concurrent, independent use
// (no shared FS instance between goroutines, so this is not a test of
// FS's own internal locking, only that nothing in the package keeps
// hidden global state between mounts).
func TestConcurrentMountFuzz(t *testing.T) {
	const images = 16
	sem := semaphore.NewWeighted(fuzzConcurrency)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	var wg sync.WaitGroup
	errs := make(chan error, images)
	for i := 0; i < images; i++ {
		seed := rng.Int63()
		if err := sem.Acquire(ctx, 1); err != nil {
			t.Fatalf("semaphore acquire: %v", err)
		}
		wg.Add(1)
		go func(i int, seed int64) {
			defer wg.Done()
			defer sem.Release(1)
			if err := fuzzOneImage(i, seed); err != nil {
				errs <- err
			}
		}(i, seed)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

// fuzzOneImage formats a scratch image with a random handful of small
// files, mounts it, and reads every file back whole, failing if any
// content round-trips wrong.
func fuzzOneImage(i int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	nfiles := 1 + rng.Intn(4)

	entries := make([]FormatEntry, nfiles)
	want := make(map[string][]byte, nfiles)
	for j := 0; j < nfiles; j++ {
		name := fmt.Sprintf("f%d", j)
		data := make([]byte, rng.Intn(512))
		rng.Read(data)
		entries[j] = FormatEntry{Name: ustr.Ustr(name), Mode: 0o100644, Data: data}
		want[name] = data
	}

	f, err := os.CreateTemp("", "ext2fuzz-*.img")
	if err != nil {
		return fmt.Errorf("image %d: tempfile: %w", i, err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	const nblocks = 512
	if ferr := Format(f, nblocks, entries); ferr != 0 {
		return fmt.Errorf("image %d: format: errno %d", i, ferr)
	}

	fs, merr := Mount(f, f)
	if merr != 0 {
		return fmt.Errorf("image %d: mount: errno %d", i, merr)
	}

	for name, data := range want {
		in, rerr := fs.resolve(ustr.Ustr("/" + name))
		if rerr != 0 {
			return fmt.Errorf("image %d: resolve %s: errno %d", i, name, rerr)
		}
		got := make([]byte, len(data))
		if n, rerr := fs.ReadFile(in, 0, got); rerr != 0 || n != len(data) {
			return fmt.Errorf("image %d: read %s: n=%d errno=%d", i, name, n, rerr)
		}
		for k := range data {
			if got[k] != data[k] {
				return fmt.Errorf("image %d: %s byte %d: got %#x want %#x", i, name, k, got[k], data[k])
			}
		}
	}
	return nil
}
