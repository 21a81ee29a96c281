package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twitch-economy-bot/internal/model"
)

// fakeRegistry records registry calls.
type fakeRegistry struct {
	commands map[string]*model.Command
	err      error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{commands: make(map[string]*model.Command)}
}

func (r *fakeRegistry) Add(_ context.Context, cmd *model.Command) error {
	if r.err != nil {
		return r.err
	}
	r.commands[cmd.Name] = cmd
	return nil
}

func (r *fakeRegistry) Update(_ context.Context, cmd *model.Command) error {
	if r.err != nil {
		return r.err
	}
	r.commands[cmd.Name] = cmd
	return nil
}

func (r *fakeRegistry) Remove(_ context.Context, name string) error {
	if r.err != nil {
		return r.err
	}
	delete(r.commands, name)
	return nil
}

func (r *fakeRegistry) Enable(_ context.Context, name string) error  { return r.err }
func (r *fakeRegistry) Disable(_ context.Context, name string) error { return r.err }

func (r *fakeRegistry) Get(name string) (*model.Command, bool) {
	cmd, exists := r.commands[name]
	return cmd, exists
}

// fakeGambling stores the latest configs.
type fakeGambling struct {
	slots *model.SlotsConfig
	roll  *model.RollConfig
}

func (g *fakeGambling) GetSlots(context.Context) (*model.SlotsConfig, error) { return g.slots, nil }
func (g *fakeGambling) UpdateSlots(_ context.Context, cfg *model.SlotsConfig) error {
	g.slots = cfg
	return nil
}
func (g *fakeGambling) GetRoll(context.Context) (*model.RollConfig, error) { return g.roll, nil }
func (g *fakeGambling) UpdateRoll(_ context.Context, cfg *model.RollConfig) error {
	g.roll = cfg
	return nil
}

// fakeRpg stores profiles by name.
type fakeRpg struct {
	profiles map[string]*model.RpgProfile
	events   []*model.RpgEvent
	nextID   int64
}

func newFakeRpg() *fakeRpg {
	return &fakeRpg{profiles: make(map[string]*model.RpgProfile)}
}

func (r *fakeRpg) CreateProfile(_ context.Context, p *model.RpgProfile) (*model.RpgProfile, error) {
	r.nextID++
	p.ID = r.nextID
	r.profiles[p.Name] = p
	return p, nil
}

func (r *fakeRpg) UpdateProfile(_ context.Context, p *model.RpgProfile) error {
	r.profiles[p.Name] = p
	return nil
}

func (r *fakeRpg) DeleteProfile(_ context.Context, id int64) error {
	for name, p := range r.profiles {
		if p.ID == id {
			delete(r.profiles, name)
			return nil
		}
	}
	return errors.New("rpg profile not found")
}

func (r *fakeRpg) GetProfileByName(_ context.Context, name string) (*model.RpgProfile, error) {
	p, exists := r.profiles[name]
	if !exists {
		return nil, errors.New("rpg profile not found")
	}
	return p, nil
}

func (r *fakeRpg) AddEvent(_ context.Context, e *model.RpgEvent) (*model.RpgEvent, error) {
	r.events = append(r.events, e)
	return e, nil
}

func (r *fakeRpg) UpdateEvent(_ context.Context, e *model.RpgEvent) error {
	for i, stored := range r.events {
		if stored.ID == e.ID {
			r.events[i] = e
			return nil
		}
	}
	return errors.New("no rpg events of that type")
}

func (r *fakeRpg) DeleteEvent(_ context.Context, id int64) error { return nil }

// fakeSfx tracks group/event saves.
type fakeSfx struct {
	groups map[int64]*model.SfxGroup
	events map[int64]*model.SfxEvent
	nextID int64
}

func newFakeSfx() *fakeSfx {
	return &fakeSfx{groups: make(map[int64]*model.SfxGroup), events: make(map[int64]*model.SfxEvent)}
}

func (s *fakeSfx) CreateGroup(_ context.Context, g *model.SfxGroup) (*model.SfxGroup, error) {
	s.nextID++
	g.ID = s.nextID
	s.groups[g.ID] = g
	return g, nil
}

func (s *fakeSfx) UpdateGroup(_ context.Context, g *model.SfxGroup) error {
	if _, exists := s.groups[g.ID]; !exists {
		return errors.New("sfx group not found")
	}
	s.groups[g.ID] = g
	return nil
}

func (s *fakeSfx) DeleteGroup(_ context.Context, id int64) error {
	delete(s.groups, id)
	return nil
}

func (s *fakeSfx) CreateEvent(_ context.Context, e *model.SfxEvent) (*model.SfxEvent, error) {
	s.nextID++
	e.ID = s.nextID
	s.events[e.ID] = e
	return e, nil
}

func (s *fakeSfx) UpdateEvent(_ context.Context, e *model.SfxEvent) error {
	s.events[e.ID] = e
	return nil
}

func (s *fakeSfx) DeleteEvent(_ context.Context, id int64) error {
	delete(s.events, id)
	return nil
}

// fakeUsers records moderation calls.
type fakeUsers struct {
	balances map[string]int64
	locks    map[string]int64
	bans     map[string]int64
	warnings map[string]int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		balances: make(map[string]int64),
		locks:    make(map[string]int64),
		bans:     make(map[string]int64),
		warnings: make(map[string]int),
	}
}

func (u *fakeUsers) SetBalance(_ context.Context, username string, balance int64) error {
	u.balances[username] = balance
	return nil
}

func (u *fakeUsers) SetFeatureLock(_ context.Context, username, feature string, until int64) error {
	u.locks[username+"/"+feature] = until
	return nil
}

func (u *fakeUsers) SetBan(_ context.Context, username string, until int64) error {
	u.bans[username] = until
	return nil
}

func (u *fakeUsers) AddWarning(_ context.Context, username string) (int, error) {
	u.warnings[username]++
	return u.warnings[username], nil
}

func newTestAdmin() (*Admin, *fakeRegistry, *fakeGambling, *fakeRpg, *fakeSfx, *fakeUsers) {
	registry := newFakeRegistry()
	gambling := &fakeGambling{}
	rpgStore := newFakeRpg()
	sfxStore := newFakeSfx()
	users := newFakeUsers()
	isAdmin := func(username string) bool { return username == "streamer" }
	return New(registry, gambling, rpgStore, sfxStore, users, isAdmin), registry, gambling, rpgStore, sfxStore, users
}

func TestAdmin_Authorize(t *testing.T) {
	a, _, _, _, _, _ := newTestAdmin()

	assert.Nil(t, a.Authorize("streamer"))

	resp := a.Authorize("alice")
	require.NotNil(t, resp)
	assert.Equal(t, "alice is not allowed to manage the bot.", resp.Error)

	// No check configured means nobody gets in.
	bare := New(newFakeRegistry(), &fakeGambling{}, newFakeRpg(), newFakeSfx(), newFakeUsers(), nil)
	assert.NotNil(t, bare.Authorize("streamer"))
}

func validSlotsForm() map[string]string {
	return map[string]string{
		"cost": "10000", "enabled": "on", "success_rate": "33",
		"reward_mushroom": "1.5", "reward_coin": "2.5",
		"reward_leaf": "5", "reward_diamond": "10", "jackpot": "7777777",
	}
}

func TestAdmin_AddCommand(t *testing.T) {
	a, registry, _, _, _, _ := newTestAdmin()
	ctx := context.Background()

	resp := a.AddCommand(ctx, map[string]string{
		"name": "hello", "description": "greets", "cost": "50",
		"payload": "Hello {user}!", "aliases": "hi, hey",
	})
	assert.Empty(t, resp.Error)
	assert.Equal(t, "Command hello added.", resp.Success)

	cmd := registry.commands["hello"]
	require.NotNil(t, cmd)
	assert.Equal(t, int64(50), cmd.Cost)
	assert.Equal(t, []string{"hi", "hey"}, cmd.Aliases)
	assert.Equal(t, model.CategoryText, cmd.Category)
	assert.True(t, cmd.Dynamic)
}

func TestAdmin_AddCommand_Validation(t *testing.T) {
	a, _, _, _, _, _ := newTestAdmin()
	ctx := context.Background()

	resp := a.AddCommand(ctx, map[string]string{"description": "x"})
	assert.Equal(t, "The name can't be empty.", resp.Error)

	resp = a.AddCommand(ctx, map[string]string{"name": "x", "cost": "12abc"})
	assert.Equal(t, "The cost must be a number.", resp.Error)

	// Negative numbers are not digit-only.
	resp = a.AddCommand(ctx, map[string]string{"name": "x", "cost": "-5"})
	assert.Equal(t, "The cost must be a number.", resp.Error)
}

func TestAdmin_AddCommand_RegistryErrorBecomesResponse(t *testing.T) {
	a, registry, _, _, _, _ := newTestAdmin()
	registry.err = errors.New("command name already exists: hello")

	resp := a.AddCommand(context.Background(), map[string]string{"name": "hello", "description": "x"})
	assert.Empty(t, resp.Success)
	assert.Contains(t, resp.Error, "already exists")
}

func TestAdmin_SetSlots(t *testing.T) {
	a, _, gambling, _, _, _ := newTestAdmin()

	resp := a.SetSlots(context.Background(), validSlotsForm())
	assert.Equal(t, "Slots updated.", resp.Success)

	require.NotNil(t, gambling.slots)
	assert.Equal(t, int64(10000), gambling.slots.Cost)
	assert.Equal(t, 33, gambling.slots.SuccessRate)
	assert.True(t, gambling.slots.Enabled)
	assert.Equal(t, int64(7777777), gambling.slots.Jackpot)
}

func TestAdmin_SetSlots_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(map[string]string)
		want   string
	}{
		{"empty cost", func(f map[string]string) { delete(f, "cost") }, "The cost can't be empty."},
		{"non-numeric cost", func(f map[string]string) { f["cost"] = "10k" }, "The cost must be a number."},
		{"success rate above 99", func(f map[string]string) { f["success_rate"] = "100" }, "The success rate can't be above 99."},
		{"bad reward", func(f map[string]string) { f["reward_leaf"] = "five" }, "The reward leaf must be a number."},
		{"empty jackpot", func(f map[string]string) { delete(f, "jackpot") }, "The jackpot can't be empty."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, gambling, _, _, _ := newTestAdmin()
			form := validSlotsForm()
			tt.mutate(form)

			resp := a.SetSlots(ctx, form)
			assert.Equal(t, tt.want, resp.Error)
			assert.Nil(t, gambling.slots)
		})
	}
}

func TestAdmin_SetRoll(t *testing.T) {
	a, _, gambling, _, _, _ := newTestAdmin()
	ctx := context.Background()

	form := map[string]string{
		"enabled": "on", "minimum_bet": "100", "maximum_bet": "777777",
		"reward_critical_success": "7.777", "reward_critical_failure": "6.66",
	}
	resp := a.SetRoll(ctx, form)
	assert.Equal(t, "Roll updated.", resp.Success)
	assert.Equal(t, int64(100), gambling.roll.MinBet)

	form["maximum_bet"] = "50"
	resp = a.SetRoll(ctx, form)
	assert.Equal(t, "The maximum bet can't be below the minimum bet.", resp.Error)
}

func validProfileForm() map[string]string {
	return map[string]string{
		"name": "forest", "cost": "1000", "win_rate": "50", "win_bonus": "100",
		"boss_bonus": "7.777", "boss_malus": "6.66", "timer": "60",
		"ratio_normal_event": "20", "ratio_treasure_event": "5",
		"ratio_monster_event": "60", "ratio_trap_event": "5", "ratio_boss_event": "10",
	}
}

func TestAdmin_AddRpgProfile_SeedsDefaultEvents(t *testing.T) {
	a, _, _, rpgStore, _, _ := newTestAdmin()

	resp := a.AddRpgProfile(context.Background(), validProfileForm())
	assert.Equal(t, "RPG profile forest added.", resp.Success)

	require.Contains(t, rpgStore.profiles, "forest")
	assert.Len(t, rpgStore.events, 50)
	assert.Equal(t, rpgStore.profiles["forest"].ID, rpgStore.events[0].RpgID)
}

func TestAdmin_RpgProfile_RatioInvariant(t *testing.T) {
	a, _, _, rpgStore, _, _ := newTestAdmin()
	ctx := context.Background()

	form := validProfileForm()
	form["ratio_boss_event"] = "11"
	resp := a.AddRpgProfile(ctx, form)
	assert.Equal(t, "ratios must be equal to 100", resp.Error)
	assert.Empty(t, rpgStore.profiles)

	require.NotEmpty(t, a.AddRpgProfile(ctx, validProfileForm()).Success)
	form = validProfileForm()
	form["ratio_normal_event"] = "0"
	resp = a.UpdateRpgProfile(ctx, form)
	assert.Equal(t, "ratios must be equal to 100", resp.Error)
}

func TestAdmin_AddRpgEvent(t *testing.T) {
	a, _, _, rpgStore, _, _ := newTestAdmin()
	ctx := context.Background()

	resp := a.AddRpgEvent(ctx, map[string]string{
		"rpg_id": "1", "message": "A wild slime appears before {user}.",
		"type": "Monster", "outcome": "Loss",
	})
	assert.Equal(t, "RPG event added.", resp.Success)
	require.Len(t, rpgStore.events, 1)

	resp = a.AddRpgEvent(ctx, map[string]string{
		"rpg_id": "1", "message": "x", "type": "Dungeon", "outcome": "Win",
	})
	assert.Contains(t, resp.Error, "The type must be one of")

	resp = a.AddRpgEvent(ctx, map[string]string{
		"rpg_id": "1", "message": "x", "type": "Boss", "outcome": "Draw",
	})
	assert.Contains(t, resp.Error, "The outcome must be one of")
}

func TestAdmin_UpdateRpgEvent(t *testing.T) {
	a, _, _, rpgStore, _, _ := newTestAdmin()
	ctx := context.Background()

	rpgStore.events = append(rpgStore.events, &model.RpgEvent{
		ID: 7, RpgID: 1, Message: "old", Type: "Normal", Outcome: "Tie",
	})

	resp := a.UpdateRpgEvent(ctx, map[string]string{
		"id": "7", "message": "A dragon lands in front of {user}.",
		"type": "Boss", "outcome": "Loss",
	})
	assert.Equal(t, "RPG event 7 updated.", resp.Success)
	assert.Equal(t, "Boss", rpgStore.events[0].Type)

	resp = a.UpdateRpgEvent(ctx, map[string]string{
		"id": "99", "message": "x", "type": "Normal", "outcome": "Win",
	})
	assert.NotEmpty(t, resp.Error)

	resp = a.UpdateRpgEvent(ctx, map[string]string{
		"id": "", "message": "x", "type": "Normal", "outcome": "Win",
	})
	assert.Equal(t, "The event id can't be empty.", resp.Error)
}

func TestAdmin_ImportRpgEvents(t *testing.T) {
	a, _, _, rpgStore, _, _ := newTestAdmin()
	ctx := context.Background()

	resp := a.ImportRpgEvents(ctx, map[string]string{
		"rpg_id": "2",
		"events": `[
			{"message": "You find a shiny sword.", "type": "Treasure", "outcome": "Win"},
			{"message": "{user} trips over a root.", "type": "Trap", "outcome": "Loss"}
		]`,
	})
	assert.Equal(t, "2 RPG events imported.", resp.Success)
	require.Len(t, rpgStore.events, 2)
	assert.Equal(t, int64(2), rpgStore.events[0].RpgID)

	// one bad row rejects the whole batch before anything is written
	resp = a.ImportRpgEvents(ctx, map[string]string{
		"rpg_id": "2",
		"events": `[{"message": "x", "type": "Dungeon", "outcome": "Win"}]`,
	})
	assert.Contains(t, resp.Error, "The type must be one of")
	assert.Len(t, rpgStore.events, 2)

	resp = a.ImportRpgEvents(ctx, map[string]string{"rpg_id": "2", "events": "not json"})
	assert.Equal(t, "The events must be a JSON list.", resp.Error)
}

func TestAdmin_SaveSfxEvent(t *testing.T) {
	a, _, _, _, sfxStore, _ := newTestAdmin()
	ctx := context.Background()

	form := map[string]string{
		"name": "airhorn", "asset_hash": "abc123", "group_id": "1",
		"volume": "80", "cost": "100", "cooldown": "30",
	}
	resp := a.SaveSfxEvent(ctx, form)
	assert.Equal(t, "SFX event airhorn added.", resp.Success)
	assert.Len(t, sfxStore.events, 1)

	form["volume"] = "101"
	resp = a.SaveSfxEvent(ctx, form)
	assert.Equal(t, "The volume can't be above 100.", resp.Error)

	delete(form, "asset_hash")
	form["volume"] = "80"
	resp = a.SaveSfxEvent(ctx, form)
	assert.Equal(t, "The asset can't be empty.", resp.Error)
}

func TestAdmin_Moderation(t *testing.T) {
	a, _, _, _, _, users := newTestAdmin()
	ctx := context.Background()
	now := int64(1_700_000_000)

	resp := a.SetBalance(ctx, map[string]string{"username": "alice", "balance": "5000"})
	assert.Equal(t, "Balance of alice set to 5000.", resp.Success)
	assert.Equal(t, int64(5000), users.balances["alice"])

	resp = a.LockFeature(ctx, map[string]string{"username": "alice", "feature": "slots", "seconds": "60"}, now)
	assert.Contains(t, resp.Success, "locked")
	assert.Equal(t, now+60, users.locks["alice/slots"])

	resp = a.LockFeature(ctx, map[string]string{"username": "alice", "feature": "slots", "seconds": "0"}, now)
	assert.Contains(t, resp.Success, "unlocked")
	assert.Equal(t, int64(0), users.locks["alice/slots"])

	resp = a.BanUser(ctx, map[string]string{"username": "alice", "seconds": "3600"}, now)
	assert.Equal(t, "alice banned.", resp.Success)
	assert.Equal(t, now+3600, users.bans["alice"])

	resp = a.WarnUser(ctx, "alice")
	assert.Equal(t, "alice warned (1).", resp.Success)
}
