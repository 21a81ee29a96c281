package handler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twitch-economy-bot/internal/command"
	"twitch-economy-bot/internal/config"
	"twitch-economy-bot/internal/game/roll"
	"twitch-economy-bot/internal/game/rpg"
	"twitch-economy-bot/internal/game/slots"
	"twitch-economy-bot/internal/model"
	"twitch-economy-bot/internal/repository"
	"twitch-economy-bot/internal/service"
)

// scriptedRand replays a fixed value sequence, repeating the last one.
type scriptedRand struct {
	values []int
	i      int
}

func (r *scriptedRand) Intn(n int) int {
	v := r.values[r.i]
	if r.i < len(r.values)-1 {
		r.i++
	}
	return v % n
}

type recorder struct {
	messages []string
}

func (r *recorder) Say(text string) { r.messages = append(r.messages, text) }

func (r *recorder) last() string {
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}

type fakeMembers map[string]bool

func (m fakeMembers) IsMember(username string) bool { return m[username] }

type fakeAccounts struct {
	users     map[string]*model.User
	cooldowns map[string]int
	topUsers  []*model.User
	chatter   string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		users:     make(map[string]*model.User),
		cooldowns: make(map[string]int),
	}
}

func (f *fakeAccounts) add(username string, balance int64) *model.User {
	u := &model.User{Username: username, Balance: balance, CreatedAt: time.Now()}
	f.users[username] = u
	return u
}

func (f *fakeAccounts) EnsureUser(_ context.Context, username string) (*model.User, error) {
	if u, ok := f.users[username]; ok {
		return u, nil
	}
	return f.add(username, 0), nil
}

func (f *fakeAccounts) Balance(_ context.Context, username string) (int64, error) {
	return f.users[username].Balance, nil
}

func (f *fakeAccounts) Adjust(_ context.Context, username string, delta int64) (int64, error) {
	f.users[username].Balance += delta
	return f.users[username].Balance, nil
}

func (f *fakeAccounts) Spend(_ context.Context, username string, amount int64) (int64, error) {
	u := f.users[username]
	if u.Balance < amount {
		return 0, service.ErrInsufficientFunds
	}
	u.Balance -= amount
	return u.Balance, nil
}

func (f *fakeAccounts) StartCooldown(_ context.Context, username, feature string, seconds int) error {
	f.cooldowns[username+"/"+feature] = seconds
	return nil
}

func (f *fakeAccounts) Top(_ context.Context, limit int) ([]*model.User, error) {
	if len(f.topUsers) > limit {
		return f.topUsers[:limit], nil
	}
	return f.topUsers, nil
}

func (f *fakeAccounts) TopChatter(_ context.Context) (string, error) { return f.chatter, nil }

type fakeGambling struct {
	slots *model.SlotsConfig
	roll  *model.RollConfig
}

func (f *fakeGambling) GetSlots(context.Context) (*model.SlotsConfig, error) { return f.slots, nil }
func (f *fakeGambling) GetRoll(context.Context) (*model.RollConfig, error)   { return f.roll, nil }

type fakeRpgSource struct {
	profiles map[string]*model.RpgProfile
	events   map[string]*model.RpgEvent // keyed by event type
}

func (f *fakeRpgSource) GetProfileByName(_ context.Context, name string) (*model.RpgProfile, error) {
	p, ok := f.profiles[name]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeRpgSource) DrawEvent(_ context.Context, _ int64, eventType string) (*model.RpgEvent, error) {
	e, ok := f.events[eventType]
	if !ok {
		return nil, repository.ErrNoEvents
	}
	return e, nil
}

func testRollConfig() *model.RollConfig {
	return &model.RollConfig{
		Enabled:         true,
		MinBet:          100,
		MaxBet:          10000,
		CritSuccessMult: 7.777,
		CritFailureMult: 6.66,
	}
}

func testSlotsConfig() *model.SlotsConfig {
	return &model.SlotsConfig{
		Cost:           10,
		Enabled:        true,
		SuccessRate:    33,
		RewardMushroom: 1.5,
		RewardCoin:     2.5,
		RewardLeaf:     5,
		RewardDiamond:  10,
		Jackpot:        7777777,
	}
}

func newGameHandler(rng *scriptedRand, accounts *fakeAccounts, gambling *fakeGambling, rpgs *fakeRpgSource, out *recorder) *GameHandler {
	h := NewGameHandler(
		config.GamesConfig{GambleCooldownSeconds: 30, SlotsCooldownSeconds: 15},
		"coins",
		accounts,
		fakeMembers{"alice": true},
		out,
		gambling,
		rpgs,
		slots.New(rng),
		roll.New(rng),
		rpg.New(rng),
	)
	return h
}

func invoke(name, user string, args ...string) *command.Invocation {
	return &command.Invocation{Command: &model.Command{Name: name}, User: user, Args: args}
}

func TestGamble_Usage(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	accounts.add("alice", 1000)
	h := newGameHandler(&scriptedRand{values: []int{75}}, accounts, &fakeGambling{roll: testRollConfig()}, nil, out)

	for _, args := range [][]string{nil, {"abc"}, {"0"}, {"100", "extra"}, {"-5"}} {
		out.messages = nil
		require.NoError(t, h.Gamble(context.Background(), invoke("gamble", "alice", args...)))
		assert.Equal(t, "Usage: !gamble <amount>", out.last(), "args %v", args)
	}
	assert.Equal(t, int64(1000), accounts.users["alice"].Balance)
}

func TestGamble_NotFollowing(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	accounts.add("mallory", 1000)
	h := newGameHandler(&scriptedRand{values: []int{75}}, accounts, &fakeGambling{roll: testRollConfig()}, nil, out)

	require.NoError(t, h.Gamble(context.Background(), invoke("gamble", "mallory", "100")))
	assert.Equal(t, "mallory is not following the channel.", out.last())
}

func TestGamble_Cooldown(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	u := accounts.add("alice", 1000)
	h := newGameHandler(&scriptedRand{values: []int{75}}, accounts, &fakeGambling{roll: testRollConfig()}, nil, out)

	now := time.Now()
	h.now = func() time.Time { return now }
	u.GambleLockedUntil = now.Unix() + 30

	require.NoError(t, h.Gamble(context.Background(), invoke("gamble", "alice", "100")))
	assert.Equal(t, "alice must wait 30s before playing again.", out.last())
	assert.Equal(t, int64(1000), u.Balance)
}

func TestGamble_BannedUserIsIgnored(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	u := accounts.add("alice", 1000)
	u.BanUntil = time.Now().Unix() + 3600
	h := newGameHandler(&scriptedRand{values: []int{75}}, accounts, &fakeGambling{roll: testRollConfig()}, nil, out)

	require.NoError(t, h.Gamble(context.Background(), invoke("gamble", "alice", "100")))
	assert.Empty(t, out.messages)
}

func TestGamble_FundsAndBounds(t *testing.T) {
	tests := []struct {
		name    string
		balance int64
		bet     string
		want    string
	}{
		{"insufficient funds", 50, "100", "alice does not have enough coins."},
		{"above maximum", 50000, "20000", "alice cannot bet more than 10000 coins."},
		{"below minimum", 1000, "50", "alice cannot bet less than 100 coins."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &recorder{}
			accounts := newFakeAccounts()
			accounts.add("alice", tt.balance)
			h := newGameHandler(&scriptedRand{values: []int{75}}, accounts, &fakeGambling{roll: testRollConfig()}, nil, out)
			require.NoError(t, h.Gamble(context.Background(), invoke("gamble", "alice", tt.bet)))
			assert.Equal(t, tt.want, out.last())
		})
	}
}

func TestGamble_Outcomes(t *testing.T) {
	tests := []struct {
		value   int
		want    string
		balance int64
	}{
		{0, "alice rolled an awful 0 and lost 666 coins!", 1000 - 666},
		{100, "alice rolled a perfect 100 and won 777 coins!", 1000 + 777},
		{25, "alice rolled a 25 and lost 100 coins.", 900},
		{50, "alice rolled a 50 and nothing happened.", 1000},
		{75, "alice rolled a 75 and won 200 coins!", 1200},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("value %d", tt.value), func(t *testing.T) {
			out := &recorder{}
			accounts := newFakeAccounts()
			accounts.add("alice", 1000)
			h := newGameHandler(&scriptedRand{values: []int{tt.value}}, accounts, &fakeGambling{roll: testRollConfig()}, nil, out)

			require.NoError(t, h.Gamble(context.Background(), invoke("gamble", "alice", "100")))
			assert.Equal(t, tt.want, out.last())
			assert.Equal(t, tt.balance, accounts.users["alice"].Balance)
			assert.Equal(t, 30, accounts.cooldowns["alice/gamble"])
		})
	}
}

func TestGamble_DisabledIsSilent(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	accounts.add("alice", 1000)
	cfg := testRollConfig()
	cfg.Enabled = false
	h := newGameHandler(&scriptedRand{values: []int{75}}, accounts, &fakeGambling{roll: cfg}, nil, out)

	require.NoError(t, h.Gamble(context.Background(), invoke("gamble", "alice", "100")))
	assert.Empty(t, out.messages)
}

func TestSlots_Loss(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	accounts.add("alice", 1000)
	// three distinct reels, then a failed forced-match check
	rng := &scriptedRand{values: []int{0, 1, 2, 100}}
	h := newGameHandler(rng, accounts, &fakeGambling{slots: testSlotsConfig()}, nil, out)

	require.NoError(t, h.Slots(context.Background(), invoke("slots", "alice")))
	assert.Equal(t, "🍄 🪙 🍀 | alice lost 10 coins!", out.last())
	assert.Equal(t, int64(990), accounts.users["alice"].Balance)
	assert.Equal(t, 15, accounts.cooldowns["alice/slots"])
}

func TestSlots_Win(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	accounts.add("alice", 1000)
	// a natural diamond triple, forced-match check fails
	rng := &scriptedRand{values: []int{3, 3, 3, 100}}
	h := newGameHandler(rng, accounts, &fakeGambling{slots: testSlotsConfig()}, nil, out)

	require.NoError(t, h.Slots(context.Background(), invoke("slots", "alice")))
	assert.Equal(t, "💎 💎 💎 | alice won 100 coins!", out.last())
	assert.Equal(t, int64(1100), accounts.users["alice"].Balance)
}

func TestSlots_InsufficientFunds(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	accounts.add("alice", 5)
	h := newGameHandler(&scriptedRand{values: []int{0}}, accounts, &fakeGambling{slots: testSlotsConfig()}, nil, out)

	require.NoError(t, h.Slots(context.Background(), invoke("slots", "alice")))
	assert.Equal(t, "alice does not have enough coins.", out.last())
	assert.Equal(t, int64(5), accounts.users["alice"].Balance)
}

func TestSlots_DisabledIsSilent(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	accounts.add("alice", 1000)
	cfg := testSlotsConfig()
	cfg.Enabled = false
	h := newGameHandler(&scriptedRand{values: []int{0}}, accounts, &fakeGambling{slots: cfg}, nil, out)

	require.NoError(t, h.Slots(context.Background(), invoke("slots", "alice")))
	assert.Empty(t, out.messages)
}

func testProfile() *model.RpgProfile {
	return &model.RpgProfile{
		ID:           1,
		Name:         "default",
		Cost:         1000,
		WinBonus:     100,
		BossBonus:    7.777,
		BossMalus:    6.66,
		TimerSeconds: 60,
		RatioNormal:  100,
	}
}

func TestRpg_UnknownProfile(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	accounts.add("alice", 5000)
	rpgs := &fakeRpgSource{profiles: map[string]*model.RpgProfile{}}
	h := newGameHandler(&scriptedRand{values: []int{0}}, accounts, &fakeGambling{}, rpgs, out)

	require.NoError(t, h.Rpg(context.Background(), invoke("rpg", "alice", "dungeon")))
	assert.Equal(t, "There is no adventure called dungeon.", out.last())
}

func TestRpg_WinEvent(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	accounts.add("alice", 5000)
	rpgs := &fakeRpgSource{
		profiles: map[string]*model.RpgProfile{"default": testProfile()},
		events: map[string]*model.RpgEvent{
			model.EventNormal: {RpgID: 1, Message: "You rest by the fire.", Type: model.EventNormal, Outcome: model.OutcomeWin},
		},
	}
	h := newGameHandler(&scriptedRand{values: []int{0}}, accounts, &fakeGambling{}, rpgs, out)

	require.NoError(t, h.Rpg(context.Background(), invoke("rpg", "alice")))
	assert.Equal(t, "You rest by the fire. alice won 100 coins!", out.last())
	// charged 1000, paid 100 back
	assert.Equal(t, int64(4100), accounts.users["alice"].Balance)
	assert.Equal(t, 60, accounts.cooldowns["alice/rpg"])
}

func TestRpg_LossEvent(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	accounts.add("alice", 5000)
	rpgs := &fakeRpgSource{
		profiles: map[string]*model.RpgProfile{"default": testProfile()},
		events: map[string]*model.RpgEvent{
			model.EventNormal: {RpgID: 1, Message: "{user} falls into a pit.", Type: model.EventNormal, Outcome: model.OutcomeLoss},
		},
	}
	h := newGameHandler(&scriptedRand{values: []int{0}}, accounts, &fakeGambling{}, rpgs, out)

	require.NoError(t, h.Rpg(context.Background(), invoke("rpg", "alice")))
	assert.Equal(t, "alice falls into a pit. alice lost 1000 coins!", out.last())
	// charged 1000, lost another 1000
	assert.Equal(t, int64(3000), accounts.users["alice"].Balance)
}

func TestRpg_EmptyAdventureRefunds(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	accounts.add("alice", 5000)
	rpgs := &fakeRpgSource{
		profiles: map[string]*model.RpgProfile{"default": testProfile()},
		events:   map[string]*model.RpgEvent{},
	}
	h := newGameHandler(&scriptedRand{values: []int{0}}, accounts, &fakeGambling{}, rpgs, out)

	require.NoError(t, h.Rpg(context.Background(), invoke("rpg", "alice")))
	assert.Equal(t, "The default adventure has nothing left to tell.", out.last())
	assert.Equal(t, int64(5000), accounts.users["alice"].Balance)
}

func TestRpg_InsufficientFunds(t *testing.T) {
	out := &recorder{}
	accounts := newFakeAccounts()
	accounts.add("alice", 10)
	rpgs := &fakeRpgSource{profiles: map[string]*model.RpgProfile{"default": testProfile()}}
	h := newGameHandler(&scriptedRand{values: []int{0}}, accounts, &fakeGambling{}, rpgs, out)

	require.NoError(t, h.Rpg(context.Background(), invoke("rpg", "alice")))
	assert.Equal(t, "alice does not have enough coins.", out.last())
	assert.Equal(t, int64(10), accounts.users["alice"].Balance)
}
