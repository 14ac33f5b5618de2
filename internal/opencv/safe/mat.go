package safe

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Mat owns a gocv.Mat. Close releases the native memory; a finalizer covers
// Mats that are dropped without Close.
type Mat struct {
	mat     gocv.Mat
	isValid int32
	mu      sync.RWMutex
	id      uint64
	tag     string
}

var nextMatID uint64

func NewMat(rows, cols int, matType gocv.MatType) (*Mat, error) {
	if err := ValidateDimensions(cols, rows, "NewMat"); err != nil {
		return nil, err
	}

	mat := gocv.NewMatWithSize(rows, cols, matType)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to create Mat with size %dx%d", cols, rows)
	}

	return wrap(mat, ""), nil
}

// NewMatFromMat clones src; the caller keeps ownership of src.
func NewMatFromMat(srcMat gocv.Mat) (*Mat, error) {
	return NewMatFromMatWithTag(srcMat, "")
}

func NewMatFromMatWithTag(srcMat gocv.Mat, tag string) (*Mat, error) {
	if srcMat.Empty() {
		return nil, fmt.Errorf("%w: source Mat is empty", ErrInvalidImage)
	}

	if srcMat.Rows() <= 0 || srcMat.Cols() <= 0 {
		return nil, fmt.Errorf("%w: source Mat has invalid dimensions: %dx%d",
			ErrInvalidImage, srcMat.Cols(), srcMat.Rows())
	}

	clonedMat := srcMat.Clone()
	if clonedMat.Empty() {
		clonedMat.Close()
		return nil, fmt.Errorf("failed to clone Mat")
	}

	return wrap(clonedMat, tag), nil
}

// Adopt takes ownership of mat without copying it. mat must not be closed by
// the caller afterwards.
func Adopt(mat gocv.Mat, tag string) (*Mat, error) {
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidImage, tagOrDefault(tag))
	}
	return wrap(mat, tag), nil
}

func wrap(mat gocv.Mat, tag string) *Mat {
	sm := &Mat{
		mat:     mat,
		isValid: 1,
		id:      atomic.AddUint64(&nextMatID, 1),
		tag:     tag,
	}
	runtime.SetFinalizer(sm, (*Mat).finalize)
	return sm
}

func (sm *Mat) IsValid() bool {
	return atomic.LoadInt32(&sm.isValid) == 1
}

func (sm *Mat) Empty() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return true
	}

	return sm.mat.Empty()
}

func (sm *Mat) Rows() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}

	return sm.mat.Rows()
}

func (sm *Mat) Cols() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}

	return sm.mat.Cols()
}

func (sm *Mat) Channels() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}

	return sm.mat.Channels()
}

func (sm *Mat) Type() gocv.MatType {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return gocv.MatTypeCV8UC1
	}

	return sm.mat.Type()
}

func (sm *Mat) Tag() string {
	return sm.tag
}

func (sm *Mat) ID() uint64 {
	return sm.id
}

func (sm *Mat) Clone() (*Mat, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil, fmt.Errorf("%w: cannot clone closed Mat", ErrInvalidImage)
	}

	return NewMatFromMatWithTag(sm.mat, sm.tag+"_clone")
}

// GetMat exposes the underlying Mat for gocv calls. It stays owned by sm.
func (sm *Mat) GetMat() gocv.Mat {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.mat
}

// Bytes returns a copy of the pixel data in row-major, channel-interleaved order.
func (sm *Mat) Bytes() ([]byte, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() || sm.mat.Empty() {
		return nil, fmt.Errorf("%w: no pixel data", ErrInvalidImage)
	}

	return sm.mat.ToBytes(), nil
}

func (sm *Mat) Close() {
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

func tagOrDefault(tag string) string {
	if tag == "" {
		return "Mat"
	}
	return tag
}
