package eval

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Weight files are a flat container of named tensors so the network can
// evolve without breaking the loader: magic, version, tensor count, then
// per tensor a name, dtype tag, shape and raw little-endian data.
const (
	weightsMagic   = "GRNN"
	weightsVersion = 1
)

const (
	dtypeInt8 = iota + 1
	dtypeInt16
	dtypeInt32
)

type tensorSpec struct {
	name  string
	dtype uint8
	shape []int
}

var tensorSpecs = []tensorSpec{
	{"feature_weights", dtypeInt16, []int{inputSize, hidden1}},
	{"feature_bias", dtypeInt16, []int{hidden1}},
	{"l1_weights", dtypeInt8, []int{hidden2, 2 * hidden1}},
	{"l1_bias", dtypeInt32, []int{hidden2}},
	{"l2_weights", dtypeInt8, []int{hidden3, hidden2}},
	{"l2_bias", dtypeInt32, []int{hidden3}},
	{"output_weights", dtypeInt8, []int{1, hidden3}},
	{"output_bias", dtypeInt32, []int{1}},
}

func LoadWeights(f io.Reader) (*Weights, error) {
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, err
	}
	if string(magic[:]) != weightsMagic {
		return nil, fmt.Errorf("bad weights magic %q", magic[:])
	}

	var version, count uint32
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != weightsVersion {
		return nil, fmt.Errorf("unsupported weights version %d", version)
	}
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	if int(count) != len(tensorSpecs) {
		return nil, fmt.Errorf("expected %d tensors, file has %d", len(tensorSpecs), count)
	}

	var w = &Weights{}
	for _, spec := range tensorSpecs {
		if err := readTensor(f, spec, w); err != nil {
			return nil, fmt.Errorf("tensor %s: %w", spec.name, err)
		}
	}
	return w, nil
}

func readTensor(f io.Reader, spec tensorSpec, w *Weights) error {
	var nameLen uint8
	if err := binary.Read(f, binary.LittleEndian, &nameLen); err != nil {
		return err
	}
	var nameBuf = make([]byte, nameLen)
	if _, err := io.ReadFull(f, nameBuf); err != nil {
		return err
	}
	if string(nameBuf) != spec.name {
		return fmt.Errorf("expected name %q, found %q", spec.name, nameBuf)
	}

	var dtype, rank uint8
	if err := binary.Read(f, binary.LittleEndian, &dtype); err != nil {
		return err
	}
	if dtype != spec.dtype {
		return fmt.Errorf("expected dtype %d, found %d", spec.dtype, dtype)
	}
	if err := binary.Read(f, binary.LittleEndian, &rank); err != nil {
		return err
	}
	if int(rank) != len(spec.shape) {
		return fmt.Errorf("expected rank %d, found %d", len(spec.shape), rank)
	}
	for i, want := range spec.shape {
		var dim uint32
		if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
			return err
		}
		if int(dim) != want {
			return fmt.Errorf("dimension %d: expected %d, found %d", i, want, dim)
		}
	}

	switch spec.name {
	case "feature_weights":
		return binary.Read(f, binary.LittleEndian, w.FeatureWeights[:])
	case "feature_bias":
		return binary.Read(f, binary.LittleEndian, w.FeatureBias[:])
	case "l1_weights":
		return binary.Read(f, binary.LittleEndian, w.L1Weights[:])
	case "l1_bias":
		return binary.Read(f, binary.LittleEndian, w.L1Bias[:])
	case "l2_weights":
		return binary.Read(f, binary.LittleEndian, w.L2Weights[:])
	case "l2_bias":
		return binary.Read(f, binary.LittleEndian, w.L2Bias[:])
	case "output_weights":
		return binary.Read(f, binary.LittleEndian, w.OutputWeights[:])
	case "output_bias":
		return binary.Read(f, binary.LittleEndian, &w.OutputBias)
	}
	return fmt.Errorf("unknown tensor %q", spec.name)
}
