package sheet

// ClassifiedSet accumulates entity drafts keyed by natural key, in first-seen
// order. Rows describing the same entity incrementally are merged into one
// draft; activities carry no dedup key and stay a flat list.
type ClassifiedSet struct {
	areas       []*AreaDraft
	areaIdx     map[string]int
	users       []*UserDraft
	userIdx     map[string]int
	objectives  []*ObjectiveDraft
	objIdx      map[string]int
	initiatives []*InitiativeDraft
	initIdx     map[string]int
	activities  []*ActivityDraft

	// NoOpRows are rows with none of the entity key columns populated:
	// counted, never an error.
	NoOpRows []int
}

func NewClassifiedSet() *ClassifiedSet {
	return &ClassifiedSet{
		areaIdx: map[string]int{},
		userIdx: map[string]int{},
		objIdx:  map[string]int{},
		initIdx: map[string]int{},
	}
}

func (s *ClassifiedSet) Area(key string) (*AreaDraft, bool) {
	i, ok := s.areaIdx[key]
	if !ok {
		return nil, false
	}
	return s.areas[i], true
}

func (s *ClassifiedSet) PutArea(d *AreaDraft) *AreaDraft {
	if i, ok := s.areaIdx[d.Key]; ok {
		return s.areas[i]
	}
	s.areaIdx[d.Key] = len(s.areas)
	s.areas = append(s.areas, d)
	return d
}

func (s *ClassifiedSet) User(key string) (*UserDraft, bool) {
	i, ok := s.userIdx[key]
	if !ok {
		return nil, false
	}
	return s.users[i], true
}

func (s *ClassifiedSet) PutUser(d *UserDraft) *UserDraft {
	if i, ok := s.userIdx[d.Key]; ok {
		return s.users[i]
	}
	s.userIdx[d.Key] = len(s.users)
	s.users = append(s.users, d)
	return d
}

func (s *ClassifiedSet) Objective(key string) (*ObjectiveDraft, bool) {
	i, ok := s.objIdx[key]
	if !ok {
		return nil, false
	}
	return s.objectives[i], true
}

func (s *ClassifiedSet) PutObjective(d *ObjectiveDraft) *ObjectiveDraft {
	if i, ok := s.objIdx[d.Key]; ok {
		return s.objectives[i]
	}
	s.objIdx[d.Key] = len(s.objectives)
	s.objectives = append(s.objectives, d)
	return d
}

func (s *ClassifiedSet) Initiative(key string) (*InitiativeDraft, bool) {
	i, ok := s.initIdx[key]
	if !ok {
		return nil, false
	}
	return s.initiatives[i], true
}

func (s *ClassifiedSet) PutInitiative(d *InitiativeDraft) *InitiativeDraft {
	if i, ok := s.initIdx[d.Key]; ok {
		return s.initiatives[i]
	}
	s.initIdx[d.Key] = len(s.initiatives)
	s.initiatives = append(s.initiatives, d)
	return d
}

func (s *ClassifiedSet) AddActivity(d *ActivityDraft) {
	s.activities = append(s.activities, d)
}

func (s *ClassifiedSet) Areas() []*AreaDraft             { return s.areas }
func (s *ClassifiedSet) Users() []*UserDraft             { return s.users }
func (s *ClassifiedSet) Objectives() []*ObjectiveDraft   { return s.objectives }
func (s *ClassifiedSet) Initiatives() []*InitiativeDraft { return s.initiatives }
func (s *ClassifiedSet) Activities() []*ActivityDraft    { return s.activities }

// EntityCount is the number of distinct entities classified, no-op rows
// excluded.
func (s *ClassifiedSet) EntityCount() int {
	return len(s.areas) + len(s.users) + len(s.objectives) + len(s.initiatives) + len(s.activities)
}

// EntityBatch is one unit of transactional work: five ordered draft lists in
// dependency order (areas and users first, activities last).
type EntityBatch struct {
	Areas       []*AreaDraft
	Users       []*UserDraft
	Objectives  []*ObjectiveDraft
	Initiatives []*InitiativeDraft
	Activities  []*ActivityDraft
}

// RowWeight is the total number of owned source rows in the batch, used when
// packing entities into fixed-size batches.
func (b *EntityBatch) RowWeight() int {
	n := 0
	for _, d := range b.Areas {
		n += len(d.Owned)
	}
	for _, d := range b.Users {
		n += len(d.Owned)
	}
	for _, d := range b.Objectives {
		n += len(d.Owned)
	}
	for _, d := range b.Initiatives {
		n += len(d.Owned)
	}
	for _, d := range b.Activities {
		n += len(d.Owned)
	}
	return n
}

func (b *EntityBatch) IsEmpty() bool {
	return len(b.Areas) == 0 && len(b.Users) == 0 && len(b.Objectives) == 0 &&
		len(b.Initiatives) == 0 && len(b.Activities) == 0
}
