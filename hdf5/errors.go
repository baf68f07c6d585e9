// Package hdf5 reads and writes the subset of HDF5 that simulation
// snapshot archives use.
//
// Reading covers superblock versions 0 to 3, symbol-table and link-message
// groups, compact, contiguous and chunked datasets, and the deflate,
// shuffle, Fletcher32, LZ4 and Zstandard filters. Numeric and string
// attributes decode to Go values, including variable-length strings held
// in the global heap.
//
// Writing builds the whole file in memory and stores it on Close. The
// default is the modern format (superblock version 3, link messages,
// single-chunk and fixed array indexes). WithLegacyFormat selects the
// version 0 layout that h5py produces by default: symbol-table groups,
// version 1 B-tree chunk indexes and variable-length string attributes.
package hdf5

import "errors"

var (
	ErrNotFound    = errors.New("object not found")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrNotGroup    = errors.New("object is not a group")
	ErrUnsupported = errors.New("unsupported feature")
	ErrClosed      = errors.New("file is closed")
	ErrReadOnly    = errors.New("file is open for reading")
	ErrWriteOnly   = errors.New("file is open for writing")
)
