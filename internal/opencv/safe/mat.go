package safe

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Mat owns a gocv.Mat and guards it against use after Close. Every image
// operation in this module takes and returns *Mat; the caller owns the result.
type Mat struct {
	mat     gocv.Mat
	isValid int32
	mu      sync.RWMutex
	id      uint64
	tag     string
}

var nextMatID uint64

func NewMat(rows, cols int, matType gocv.MatType) (*Mat, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}

	mat := gocv.NewMatWithSize(rows, cols, matType)
	return Wrap(mat, "")
}

// NewMatFromScalar allocates a Mat with every element set to s.
func NewMatFromScalar(rows, cols int, matType gocv.MatType, s gocv.Scalar) (*Mat, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}

	mat := gocv.NewMatWithSizeFromScalar(s, rows, cols, matType)
	return Wrap(mat, "")
}

// NewMatFromMat deep-copies srcMat; the caller keeps ownership of srcMat.
func NewMatFromMat(srcMat gocv.Mat) (*Mat, error) {
	if srcMat.Empty() {
		return nil, fmt.Errorf("source Mat is empty")
	}

	return Wrap(srcMat.Clone(), "")
}

// Wrap takes ownership of m. An empty m is closed and rejected.
func Wrap(m gocv.Mat, tag string) (*Mat, error) {
	if m.Empty() || m.Rows() <= 0 || m.Cols() <= 0 {
		m.Close()
		return nil, fmt.Errorf("cannot wrap empty Mat")
	}

	safeMat := &Mat{
		mat:     m,
		isValid: 1,
		id:      atomic.AddUint64(&nextMatID, 1),
		tag:     tag,
	}

	runtime.SetFinalizer(safeMat, (*Mat).finalize)

	return safeMat, nil
}

func (sm *Mat) IsValid() bool {
	return sm != nil && atomic.LoadInt32(&sm.isValid) == 1
}

func (sm *Mat) Empty() bool {
	if !sm.IsValid() {
		return true
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.mat.Empty()
}

func (sm *Mat) Rows() int {
	if !sm.IsValid() {
		return 0
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.mat.Rows()
}

func (sm *Mat) Cols() int {
	if !sm.IsValid() {
		return 0
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.mat.Cols()
}

func (sm *Mat) Channels() int {
	if !sm.IsValid() {
		return 0
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.mat.Channels()
}

func (sm *Mat) Type() gocv.MatType {
	if !sm.IsValid() {
		return gocv.MatTypeCV8UC1
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.mat.Type()
}

func (sm *Mat) Clone() (*Mat, error) {
	if !sm.IsValid() {
		return nil, fmt.Errorf("cannot clone invalid Mat")
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.mat.Empty() {
		return nil, fmt.Errorf("cannot clone empty Mat")
	}

	return Wrap(sm.mat.Clone(), sm.tag)
}

func (sm *Mat) GetUCharAt(row, col int) (uint8, error) {
	if !sm.IsValid() {
		return 0, fmt.Errorf("Mat is invalid")
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if row < 0 || row >= sm.mat.Rows() || col < 0 || col >= sm.mat.Cols() {
		return 0, fmt.Errorf("coordinates out of bounds: (%d,%d) for size %dx%d",
			col, row, sm.mat.Cols(), sm.mat.Rows())
	}

	return sm.mat.GetUCharAt(row, col), nil
}

func (sm *Mat) SetUCharAt(row, col int, value uint8) error {
	if !sm.IsValid() {
		return fmt.Errorf("Mat is invalid")
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if row < 0 || row >= sm.mat.Rows() || col < 0 || col >= sm.mat.Cols() {
		return fmt.Errorf("coordinates out of bounds: (%d,%d) for size %dx%d",
			col, row, sm.mat.Cols(), sm.mat.Rows())
	}

	sm.mat.SetUCharAt(row, col, value)
	return nil
}

func (sm *Mat) GetUCharAt3(row, col, channel int) (uint8, error) {
	if !sm.IsValid() {
		return 0, fmt.Errorf("Mat is invalid")
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if row < 0 || row >= sm.mat.Rows() || col < 0 || col >= sm.mat.Cols() {
		return 0, fmt.Errorf("coordinates out of bounds: (%d,%d) for size %dx%d",
			col, row, sm.mat.Cols(), sm.mat.Rows())
	}

	if channel < 0 || channel >= sm.mat.Channels() {
		return 0, fmt.Errorf("channel out of bounds: %d for %d channels", channel, sm.mat.Channels())
	}

	return sm.mat.GetUCharAt(row, col*sm.mat.Channels()+channel), nil
}

func (sm *Mat) SetUCharAt3(row, col, channel int, value uint8) error {
	if !sm.IsValid() {
		return fmt.Errorf("Mat is invalid")
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if row < 0 || row >= sm.mat.Rows() || col < 0 || col >= sm.mat.Cols() {
		return fmt.Errorf("coordinates out of bounds: (%d,%d) for size %dx%d",
			col, row, sm.mat.Cols(), sm.mat.Rows())
	}

	if channel < 0 || channel >= sm.mat.Channels() {
		return fmt.Errorf("channel out of bounds: %d for %d channels", channel, sm.mat.Channels())
	}

	sm.mat.SetUCharAt(row, col*sm.mat.Channels()+channel, value)
	return nil
}

// Bytes returns a copy of the pixel data in row-major, channel-interleaved
// order.
func (sm *Mat) Bytes() []byte {
	if !sm.IsValid() {
		return nil
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.mat.ToBytes()
}

// GetMat exposes the underlying gocv.Mat for library calls. The returned
// value shares storage with sm and must not be closed.
func (sm *Mat) GetMat() gocv.Mat {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.mat
}

func (sm *Mat) ID() uint64 {
	return sm.id
}

// Tag names the operation that produced the Mat, for diagnostics.
func (sm *Mat) Tag() string {
	return sm.tag
}

func (sm *Mat) Close() {
	if sm == nil {
		return
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if atomic.CompareAndSwapInt32(&sm.isValid, 1, 0) {
		sm.mat.Close()
		runtime.SetFinalizer(sm, nil)
	}
}

func (sm *Mat) finalize() {
	if atomic.LoadInt32(&sm.isValid) == 1 {
		sm.Close()
	}
}
