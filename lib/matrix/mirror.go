package matrix

// Mirror makes slave copy every later level change of master. The slave's
// current level is left as is. Any previous master of slave is replaced.
func (m *Matrix) Mirror(slave, master int) error {
	if err := m.check(slave); err != nil {
		return err
	}
	if err := m.check(master); err != nil {
		return err
	}
	m.masters[slave-1] = master
	m.log.Printf("Channel %d is mirroring channel %d", slave, master)
	return nil
}

func (m *Matrix) Unmirror(slave int) error {
	if err := m.check(slave); err != nil {
		return err
	}
	m.masters[slave-1] = 0
	m.log.Printf("Channel %d is no longer mirroring a channel", slave)
	return nil
}

// Master returns the channel slave mirrors, or 0.
func (m *Matrix) Master(slave int) int {
	if m.check(slave) != nil {
		return 0
	}
	return m.masters[slave-1]
}

func (m *Matrix) propagate(changed int, on bool) error {
	for i := 0; i < m.channels; i++ {
		if m.masters[i] != changed {
			continue
		}
		if err := m.Set(i+1, on); err != nil {
			return err
		}
	}
	return nil
}
