package tmdef

// Params contains per-generation sizing of the traffic manager.
type Params struct {
	Asic AsicType

	MaxPipes       int // pipes on a full-size device
	PortsPerPipe   int // local ports per pipe
	PortsPerGroup  int // channels in a port group
	ChannelsPerMac int // channels served by one MAC
	QueuesPerGroup int // queues shared by a port group
	MaxPortQueues  int // queues on a single port
	HqPerVq        int // hardware queues backing one virtual queue
	PpgsPerPipe    int // allocatable PPGs per pipe
	HystProfiles   int // hysteresis profile entries per pipe

	// MacPpgSplit restricts PPGs by MAC: MAC1-4 use the lower half of the PPG range, MAC5-9 use the upper half.
	MacPpgSplit bool

	CellsPerPipe uint32 // buffer cells per pipe
}

// NPortGroups returns number of port groups per pipe.
func (p Params) NPortGroups() int {
	return (p.PortsPerPipe + p.PortsPerGroup - 1) / p.PortsPerGroup
}

// QueuesPerPipe returns number of physical queues per pipe.
func (p Params) QueuesPerPipe() int {
	return p.NPortGroups() * p.QueuesPerGroup
}

// PpgRange returns the allocatable PPG range [lo,hi) usable by a local port.
func (p Params) PpgRange(localPort int) (lo, hi int) {
	if !p.MacPpgSplit {
		return 0, p.PpgsPerPipe
	}
	half := p.PpgsPerPipe / 2
	if mac := localPort/p.ChannelsPerMac + 1; mac <= 4 {
		return 0, half
	}
	return half, p.PpgsPerPipe
}

// ParamsOf returns Params of an ASIC generation.
func ParamsOf(asic AsicType) (p Params, ok bool) {
	switch asic {
	case Tofino:
		return Params{
			Asic:           Tofino,
			MaxPipes:       4,
			PortsPerPipe:   72,
			PortsPerGroup:  4,
			ChannelsPerMac: 4,
			QueuesPerGroup: 128,
			MaxPortQueues:  32,
			HqPerVq:        1,
			PpgsPerPipe:    128,
			HystProfiles:   32,
			CellsPerPipe:   20480,
		}, true
	case Tofino2:
		return Params{
			Asic:           Tofino2,
			MaxPipes:       4,
			PortsPerPipe:   72,
			PortsPerGroup:  8,
			ChannelsPerMac: 8,
			QueuesPerGroup: 128,
			MaxPortQueues:  128,
			HqPerVq:        1,
			PpgsPerPipe:    128,
			HystProfiles:   32,
			MacPpgSplit:    true,
			CellsPerPipe:   24576,
		}, true
	case Tofino3:
		return Params{
			Asic:           Tofino3,
			MaxPipes:       8,
			PortsPerPipe:   72,
			PortsPerGroup:  8,
			ChannelsPerMac: 8,
			QueuesPerGroup: 128,
			MaxPortQueues:  128,
			HqPerVq:        2,
			PpgsPerPipe:    128,
			HystProfiles:   32,
			MacPpgSplit:    true,
			CellsPerPipe:   32768,
		}, true
	}
	return Params{}, false
}
