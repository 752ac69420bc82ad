// Package dataset owns the dataset contract: the descriptor manifest, the label file format
// and the pairing of images with labels.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/debris/common"
)

// DefaultClasses are the classes of the space debris dataset, in label index order. The
// "statelites" spelling is the one the published dataset uses.
var DefaultClasses = []string{"space_debris", "statelites", "asteroids"}

// Descriptor is a loaded dataset manifest.
type Descriptor struct {
	// Source is the descriptor file the manifest was read from.
	Source string
	// Root is the dataset root every relative split is resolved against.
	Root string
	// Train is the training image directory.
	Train string
	// Val is the validation image directory.
	Val string
	// Names holds the class names, index-significant.
	Names []string
}

// NC returns the number of classes.
func (d *Descriptor) NC() int { return len(d.Names) }

// ClassName returns the name of class i, or "class_<i>" when i is out of range.
func (d *Descriptor) ClassName(i int) string {
	if i >= 0 && i < len(d.Names) {
		return d.Names[i]
	}
	return fmt.Sprintf("class_%d", i)
}

// SharedSplit reports whether training and validation read the same directory.
func (d *Descriptor) SharedSplit() bool {
	return filepath.Clean(d.Train) == filepath.Clean(d.Val)
}

// descriptorFile is the on-disk manifest.
type descriptorFile struct {
	Path  string     `yaml:"path,omitempty"`
	Train string     `yaml:"train"`
	Val   string     `yaml:"val"`
	NC    int        `yaml:"nc"`
	Names classNames `yaml:"names"`
}

// classNames accepts either a sequence of names or a mapping of index to name.
type classNames []string

func (c *classNames) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		*c = names
		return nil
	case yaml.MappingNode:
		var byIndex map[int]string
		if err := node.Decode(&byIndex); err != nil {
			return err
		}
		names := make([]string, len(byIndex))
		for i, name := range byIndex {
			if i < 0 || i >= len(byIndex) {
				return fmt.Errorf("line %d: class indices must be contiguous from 0, got %d", node.Line, i)
			}
			names[i] = name
		}
		*c = names
		return nil
	default:
		return fmt.Errorf("line %d: names must be a list or an index map", node.Line)
	}
}

// LoadDescriptor reads and checks a dataset descriptor.
//
// Relative splits are resolved against the "path" key, itself relative to the descriptor's
// directory, or against the descriptor's directory when "path" is absent.
//
// Arguments:
//   - path: The descriptor file.
//
// Returns:
//   - *Descriptor: The manifest with absolute split directories.
//   - error: A *common.ConfigError for an unreadable or malformed file, a class count that
//     does not match the names, an empty or duplicate name, or a missing split directory.
func LoadDescriptor(path string) (*Descriptor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &common.ConfigError{Path: path, Err: err}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &common.ConfigError{Path: path, Err: errors.Wrap(err, "reading descriptor")}
	}

	var raw descriptorFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &common.ConfigError{Path: path, Err: errors.Wrap(err, "parsing descriptor")}
	}

	if err := checkNames(raw.NC, raw.Names); err != nil {
		return nil, &common.ConfigError{Path: path, Field: "names", Err: err}
	}

	root := filepath.Dir(abs)
	if raw.Path != "" {
		root = resolve(root, raw.Path)
	}

	d := &Descriptor{
		Source: abs,
		Root:   root,
		Names:  []string(raw.Names),
	}

	for _, split := range []struct {
		field string
		value string
		dst   *string
	}{
		{"train", raw.Train, &d.Train},
		{"val", raw.Val, &d.Val},
	} {
		if strings.TrimSpace(split.value) == "" {
			return nil, &common.ConfigError{Path: path, Field: split.field, Err: errors.New("missing split directory")}
		}
		dir := resolve(root, split.value)
		info, err := os.Stat(dir)
		if err != nil {
			return nil, &common.ConfigError{Path: path, Field: split.field, Err: errors.Wrapf(err, "split directory %s", dir)}
		}
		if !info.IsDir() {
			return nil, &common.ConfigError{Path: path, Field: split.field, Err: errors.Errorf("%s is not a directory", dir)}
		}
		*split.dst = dir
	}

	return d, nil
}

func checkNames(nc int, names []string) error {
	if nc <= 0 {
		return errors.Errorf("nc must be positive, got %d", nc)
	}
	if len(names) != nc {
		return errors.Errorf("nc is %d but %d names are declared", nc, len(names))
	}
	seen := make(map[string]int, len(names))
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return errors.Errorf("class %d has an empty name", i)
		}
		if j, ok := seen[name]; ok {
			return errors.Errorf("classes %d and %d share the name %q", j, i, name)
		}
		seen[name] = i
	}
	return nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// DefaultDescriptor returns a manifest for the three default classes. An empty val reuses
// train, which is how the dataset has always been evaluated.
func DefaultDescriptor(train, val string) *Descriptor {
	if val == "" {
		val = train
	}
	return &Descriptor{
		Train: train,
		Val:   val,
		Names: append([]string(nil), DefaultClasses...),
	}
}

// WriteDescriptor writes d as a manifest the framework can read. Train and Val are written
// as given, so relative paths stay relative to the written file.
//
// Arguments:
//   - path: Destination file.
//   - d: The manifest to write.
//   - overwrite: Whether an existing file may be replaced.
//
// Returns:
//   - error: A *common.ConfigError when the manifest is invalid or the file exists.
func WriteDescriptor(path string, d *Descriptor, overwrite bool) error {
	if err := checkNames(len(d.Names), d.Names); err != nil {
		return &common.ConfigError{Path: path, Field: "names", Err: err}
	}
	if d.Train == "" || d.Val == "" {
		return &common.ConfigError{Path: path, Field: "train", Err: errors.New("train and val are required")}
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return &common.ConfigError{Path: path, Err: errors.New("descriptor already exists")}
		}
	}

	out := descriptorFile{
		Path:  d.Root,
		Train: d.Train,
		Val:   d.Val,
		NC:    len(d.Names),
		Names: classNames(d.Names),
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return errors.Wrap(err, "encoding descriptor")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "creating descriptor directory")
		}
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "writing descriptor")
}
