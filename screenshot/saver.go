// Package screenshot writes captured frames as PNG files. Encoding happens on
// a worker pool so the event loop never blocks on disk I/O.
package screenshot

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// DirName is the directory created next to the executable for saved frames.
const DirName = "screenshot"

// Saver assigns date-based file names and encodes captured frames to PNG in
// the background.
type Saver interface {
	// Save queues the image for PNG encoding under a fresh date-based name
	// (YYYY-MM-DD-N.png). The count restarts at 1 each day and skips names
	// already on disk.
	//
	// Parameters:
	//   - img: the captured frame
	//
	// Returns:
	//   - string: the path the file will be written to
	//   - error: an error if the screenshot directory cannot be created
	Save(img *image.RGBA) (string, error)

	// Wait blocks until every queued save has finished writing.
	Wait()
}

type saver struct {
	dir    string
	date   string
	count  int
	taskID int

	pool worker.DynamicWorkerPool
	wg   sync.WaitGroup
}

var _ Saver = &saver{}

// NewSaver creates a Saver writing into the given directory.
//
// Parameters:
//   - dir: the screenshot directory (created on first save)
//
// Returns:
//   - Saver: the new saver
func NewSaver(dir string) Saver {
	return &saver{
		dir:  dir,
		pool: worker.NewDynamicWorkerPool(2, 16, 1*time.Second),
	}
}

// DefaultDir returns the screenshot directory next to the executable.
// Falls back to the working directory when the executable path is unknown.
//
// Returns:
//   - string: the screenshot directory path
func DefaultDir() string {
	exe, err := os.Executable()
	if err != nil {
		return DirName
	}
	return filepath.Join(filepath.Dir(exe), DirName)
}

func (s *saver) Save(img *image.RGBA) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	path := s.nextPath()

	s.wg.Add(1)
	id := s.taskID
	s.taskID++
	s.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			defer s.wg.Done()

			f, err := os.Create(path)
			if err != nil {
				log.Printf("save screenshot: %v", err)
				return nil, err
			}
			defer f.Close()

			if err := png.Encode(f, img); err != nil {
				log.Printf("save screenshot: %v", err)
				return nil, err
			}
			log.Printf("save screenshot: %s", path)
			return nil, nil
		},
	})

	return path, nil
}

// nextPath picks the first unused YYYY-MM-DD-N.png name for today. The
// counter resets when the date rolls over.
func (s *saver) nextPath() string {
	date := time.Now().Format("2006-01-02")
	if date != s.date {
		s.date = date
		s.count = 1
	}
	var path string
	for {
		path = filepath.Join(s.dir, fmt.Sprintf("%s-%d.png", date, s.count))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		s.count++
	}
	s.count++
	return path
}

func (s *saver) Wait() {
	s.wg.Wait()
}
