package history

import "os"

// DiskUsageBytes returns the size of the database file plus its WAL
// sidecars. Missing files contribute 0.
func (s *Store) DiskUsageBytes() (int64, error) {
	var total int64
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
