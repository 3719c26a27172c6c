package cluster

import (
	"fmt"
	"log"
	"log/slog"
	"maps"
	"slices"

	"github.com/sarchlab/ooosim/insts"
	"github.com/sarchlab/ooosim/timing/event"
	"github.com/sarchlab/ooosim/timing/port"
)

type unitKind uint8

const (
	kindGeneric unitKind = iota
	kindRALU
	kindBranch
	kindLoad
	kindStore
)

func kindOf(op insts.Op) unitKind {
	switch {
	case op == insts.OpRALU:
		return kindRALU
	case op.IsBranch():
		return kindBranch
	case op.IsLoad():
		return kindLoad
	case op.IsStore():
		return kindStore
	default:
		return kindGeneric
	}
}

// Manager builds the clusters of one core and maps each opcode class to
// the Resource that executes it. Opcode classes that name the same unit in
// one cluster share its port; they also share the Resource when they are
// of the same kind.
type Manager struct {
	clusters []*Cluster
	res      [insts.NumOps]Resource
}

// NewManager builds every cluster in cfgs.
func NewManager(
	cfgs []Config,
	units map[string]UnitConfig,
	params Params,
	env Env,
) (*Manager, error) {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}

	m := &Manager{}

	for _, cfg := range cfgs {
		if err := cfg.Validate(units); err != nil {
			return nil, err
		}

		c, err := newCluster(cfg, &env, m.Resource)
		if err != nil {
			return nil, err
		}

		if err := m.buildUnits(c, cfg, units, params, &env); err != nil {
			return nil, err
		}

		m.clusters = append(m.clusters, c)
	}

	return m, nil
}

func (m *Manager) buildUnits(
	c *Cluster,
	cfg Config,
	units map[string]UnitConfig,
	params Params,
	env *Env,
) error {
	ports := make(map[string]port.Port)
	shared := make(map[string]Resource)

	for _, opName := range slices.Sorted(maps.Keys(cfg.Units)) {
		op, err := insts.ParseOp(opName)
		if err != nil {
			return fmt.Errorf("cluster %s: %w", cfg.Name, err)
		}

		if op == insts.OpInvalid {
			return fmt.Errorf("cluster %s: %v cannot be mapped", cfg.Name, op)
		}

		if m.res[op] != nil {
			return fmt.Errorf("cluster %s: %v already runs in cluster %s",
				cfg.Name, op, m.res[op].Cluster().Name())
		}

		unitName := cfg.Units[opName]
		uc := units[unitName]
		kind := kindOf(op)

		key := fmt.Sprintf("%d/%s", kind, unitName)
		if r, ok := shared[key]; ok {
			m.res[op] = r
			continue
		}

		name := fmt.Sprintf("%s_%s_%s", env.Name, cfg.Name, unitName)

		p, ok := ports[unitName]
		if !ok {
			p = port.New(name, env.Sched, uc.Num, uc.Occ, env.Stats)
			ports[unitName] = p
		}

		r := newResource(kind, newUnit(name, c, p, uc.Lat, env), params, env)
		shared[key] = r
		m.res[op] = r

		env.Logger.Debug("unit built",
			"cluster", cfg.Name, "unit", unitName, "op", op.String(),
			"lat", uc.Lat, "num", uc.Num, "occ", uc.Occ)
	}

	return nil
}

func newResource(kind unitKind, u unit, params Params, env *Env) Resource {
	switch kind {
	case kindRALU:
		return &RALU{
			Generic:  Generic{unit: u},
			nSyscall: env.Stats.Counter(u.name + "_nSyscall"),
			nBarrier: env.Stats.Counter(u.name + "_nBarrier"),
		}
	case kindBranch:
		return &Branch{
			unit:        u,
			maxBranches: params.MaxBranches,
			free:        params.MaxBranches,
			drainOnMiss: params.DrainOnMiss,
			bpredDelay:  event.Cycle(params.BpredDelay),
			nMiss:       env.Stats.Counter(u.name + "_nBranchMiss"),
		}
	case kindLoad:
		return &Load{
			unit:          u,
			lsq:           env.LSQ,
			storeSet:      env.StoreSet,
			scb:           env.SCB,
			memPool:       env.MemPool,
			dl1:           env.DL1,
			size:          params.LdqSize,
			free:          params.LdqSize,
			stFwdDelay:    event.Cycle(params.StFwdDelay),
			specLoads:     params.SpecLoads,
			nForwarded:    env.Stats.Counter(u.name + "_nForwarded"),
			nSCBForwarded: env.Stats.Counter(u.name + "_nSCBForwarded"),
			nSpecReads:    env.Stats.Counter(u.name + "_nSpecReads"),
		}
	case kindStore:
		return &Store{
			unit:        u,
			lsq:         env.LSQ,
			storeSet:    env.StoreSet,
			scb:         env.SCB,
			dl1:         env.DL1,
			size:        params.StqSize,
			free:        params.StqSize,
			nViolations: env.Stats.Counter(u.name + "_nStldViolations"),
			nSCBFull:    env.Stats.Counter(u.name + "_nSCBFull"),
		}
	default:
		return &Generic{unit: u}
	}
}

// Clusters returns the clusters in configuration order.
func (m *Manager) Clusters() []*Cluster { return m.clusters }

// Mapped reports whether some cluster executes op.
func (m *Manager) Mapped(op insts.Op) bool {
	return op < insts.NumOps && m.res[op] != nil
}

// Resource returns the unit that executes op.
func (m *Manager) Resource(op insts.Op) Resource {
	if !m.Mapped(op) {
		log.Panicf("cluster: no unit executes %v", op)
	}

	return m.res[op]
}
