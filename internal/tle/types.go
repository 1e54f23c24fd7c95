package tle

import "time"

// TLEEntry represents a single satellite's two-line element set.
type TLEEntry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset is the element set loaded at startup.
type Dataset struct {
	Source     string
	LoadedAt   time.Time
	EpochRange EpochRange
	Satellites []TLEEntry
}

// NewDataset wraps parsed entries and computes their epoch range.
func NewDataset(source string, entries []TLEEntry, loadedAt time.Time) *Dataset {
	ds := &Dataset{
		Source:     source,
		LoadedAt:   loadedAt,
		Satellites: entries,
	}
	if len(entries) == 0 {
		return ds
	}

	ds.EpochRange = EpochRange{Min: entries[0].Epoch, Max: entries[0].Epoch}
	for _, e := range entries[1:] {
		if e.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = e.Epoch
		}
		if e.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = e.Epoch
		}
	}
	return ds
}

// Lookup returns the entry with the given name, if any.
func (ds *Dataset) Lookup(name string) (TLEEntry, bool) {
	for _, e := range ds.Satellites {
		if e.Name == name {
			return e, true
		}
	}
	return TLEEntry{}, false
}

// Select returns the entries for names in the order given, and the names
// that are not in the dataset. An empty names selects every entry.
func (ds *Dataset) Select(names []string) (entries []TLEEntry, missing []string) {
	if len(names) == 0 {
		return ds.Satellites, nil
	}
	for _, name := range names {
		if e, ok := ds.Lookup(name); ok {
			entries = append(entries, e)
		} else {
			missing = append(missing, name)
		}
	}
	return entries, missing
}
