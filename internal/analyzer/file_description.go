package analyzer

import (
	"log/slog"
	"strings"

	"github.com/ludo-technologies/cblscan/internal/constants"
	"github.com/ludo-technologies/cblscan/internal/diag"
)

// FileControlEntry is a SELECT entry from FILE-CONTROL
type FileControlEntry struct {
	Name         string
	Assign       string
	Organization string
	AccessMode   string
	RecordKey    string
	Select       string
	Line         int
}

// FileRecord is one record layout under an FD
type FileRecord struct {
	Name              string
	Level             string
	Line              int
	Picture           string
	WorkingStorageRef string
}

// FileDescription is an FD entry. It refers to its FILE-CONTROL entry by name.
type FileDescription struct {
	Name        string
	Label       string
	Line        int
	Records     []FileRecord
	FileControl string
}

// FileDescriptionInput holds the raw FD facts supplied by the front-end
type FileDescriptionInput struct {
	Name    string
	Label   string
	Line    int
	Records []FileRecord
}

// FileIndex holds the name-keyed file records of one program
type FileIndex struct {
	Controls     map[string]*FileControlEntry
	Descriptions map[string]*FileDescription
	order        []string
}

// Ordered returns the file descriptions in declaration order
func (fi *FileIndex) Ordered() []*FileDescription {
	out := make([]*FileDescription, 0, len(fi.order))
	for _, name := range fi.order {
		out = append(out, fi.Descriptions[name])
	}
	return out
}

// Lookup returns the file description for a file name, if any
func (fi *FileIndex) Lookup(name string) *FileDescription {
	if fi == nil {
		return nil
	}
	return fi.Descriptions[strings.ToUpper(name)]
}

// Control returns the FILE-CONTROL entry a description refers to
func (fi *FileIndex) Control(fd *FileDescription) *FileControlEntry {
	if fi == nil || fd == nil || fd.FileControl == "" {
		return nil
	}
	return fi.Controls[fd.FileControl]
}

// BuildFileIndex cross-references FD entries with FILE-CONTROL entries and
// working storage, reporting referential problems.
func BuildFileIndex(controls []FileControlEntry, fds []FileDescriptionInput, workingStorage map[string]string, diags *diag.List, logger *slog.Logger) *FileIndex {
	fi := &FileIndex{
		Controls:     make(map[string]*FileControlEntry),
		Descriptions: make(map[string]*FileDescription),
	}

	for i := range controls {
		entry := controls[i]
		entry.Name = strings.ToUpper(strings.TrimSpace(entry.Name))
		if entry.Name == "" {
			diags.Add(diag.CategoryReferential, constants.UnknownValue, entry.Line,
				"Missing file name in FILE-CONTROL entry")
			entry.Name = constants.UnknownValue
		}
		if entry.Select == "" {
			entry.Select = constants.UnknownValue
		}
		fi.Controls[entry.Name] = &entry
	}

	for _, in := range fds {
		name := strings.ToUpper(strings.TrimSpace(in.Name))
		if name == "" {
			name = constants.UnknownValue
		}
		fd := &FileDescription{
			Name:    name,
			Label:   normalizeLabel(in.Label),
			Line:    in.Line,
			Records: make([]FileRecord, 0, len(in.Records)),
		}

		if fd.Label != "" && !strings.Contains(fd.Label, "STANDARD") && !strings.Contains(fd.Label, "OMITTED") {
			diags.Add(diag.CategoryReferential, name, in.Line,
				"Invalid LABEL RECORD clause for file %s: %s", name, fd.Label)
		}

		for _, rec := range in.Records {
			rec.Name = strings.ToUpper(rec.Name)
			if _, ok := workingStorage[rec.Name]; ok {
				rec.WorkingStorageRef = rec.Name
			} else {
				logger.Debug("no working-storage mapping for record",
					slog.String("record", rec.Name),
					slog.String("file", name),
					slog.Int("line", rec.Line))
			}
			fd.Records = append(fd.Records, rec)
		}
		if len(fd.Records) == 0 {
			diags.Add(diag.CategoryReferential, name, in.Line,
				"No records defined in FD for file %s", name)
		}

		if _, ok := fi.Controls[name]; ok {
			fd.FileControl = name
		} else {
			diags.Add(diag.CategoryReferential, name, in.Line,
				"No FILE-CONTROL entry found for file %s", name)
		}

		if _, dup := fi.Descriptions[name]; !dup {
			fi.order = append(fi.order, name)
		}
		fi.Descriptions[name] = fd
		logger.Debug("processed FD", slog.String("file", name), slog.Int("records", len(fd.Records)))
	}

	return fi
}

// shapeFileDescription fills the canonical defaults of an FD
func shapeFileDescription(fd *FileDescription) {
	if fd.Name == "" {
		fd.Name = constants.UnknownValue
	}
	if fd.Label == "" {
		fd.Label = "OMITTED"
	}
	if fd.Records == nil {
		fd.Records = []FileRecord{}
	}
	for i := range fd.Records {
		if fd.Records[i].Name == "" {
			fd.Records[i].Name = constants.UnknownValue
		}
		if fd.Records[i].Level == "" {
			fd.Records[i].Level = constants.UnknownValue
		}
	}
}

// normalizeLabel reduces a LABEL RECORD clause to its value
func normalizeLabel(label string) string {
	fields := strings.Fields(strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(label), ".")))
	out := fields[:0]
	for _, f := range fields {
		switch f {
		case "LABEL", "RECORD", "RECORDS", "ARE", "IS":
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}
