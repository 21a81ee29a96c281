// Package admin is the transport-free management facade. An external HTTP
// layer feeds it form values; every outcome comes back as a Response that
// serializes to the {"success": ...} / {"error": ...} dicts the dashboard
// expects. Validation failures are data, not errors.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"twitch-economy-bot/internal/game/rpg"
	"twitch-economy-bot/internal/model"
)

// Response is the JSON-shaped outcome of one admin operation. Exactly one
// of the two fields is set.
type Response struct {
	Success string `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(format string, args ...any) Response {
	return Response{Success: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...any) Response {
	return Response{Error: fmt.Sprintf(format, args...)}
}

// Registry is the command registry surface the admin drives.
type Registry interface {
	Add(ctx context.Context, cmd *model.Command) error
	Update(ctx context.Context, cmd *model.Command) error
	Remove(ctx context.Context, name string) error
	Enable(ctx context.Context, name string) error
	Disable(ctx context.Context, name string) error
	Get(name string) (*model.Command, bool)
}

// GamblingStore persists the slots and roll configs.
type GamblingStore interface {
	GetSlots(ctx context.Context) (*model.SlotsConfig, error)
	UpdateSlots(ctx context.Context, cfg *model.SlotsConfig) error
	GetRoll(ctx context.Context) (*model.RollConfig, error)
	UpdateRoll(ctx context.Context, cfg *model.RollConfig) error
}

// RpgStore persists adventure profiles and events.
type RpgStore interface {
	CreateProfile(ctx context.Context, p *model.RpgProfile) (*model.RpgProfile, error)
	UpdateProfile(ctx context.Context, p *model.RpgProfile) error
	DeleteProfile(ctx context.Context, id int64) error
	GetProfileByName(ctx context.Context, name string) (*model.RpgProfile, error)
	AddEvent(ctx context.Context, e *model.RpgEvent) (*model.RpgEvent, error)
	UpdateEvent(ctx context.Context, e *model.RpgEvent) error
	DeleteEvent(ctx context.Context, id int64) error
}

// SfxStore persists sound-effect groups and events.
type SfxStore interface {
	CreateGroup(ctx context.Context, g *model.SfxGroup) (*model.SfxGroup, error)
	UpdateGroup(ctx context.Context, g *model.SfxGroup) error
	DeleteGroup(ctx context.Context, id int64) error
	CreateEvent(ctx context.Context, e *model.SfxEvent) (*model.SfxEvent, error)
	UpdateEvent(ctx context.Context, e *model.SfxEvent) error
	DeleteEvent(ctx context.Context, id int64) error
}

// UserStore covers the moderation operations.
type UserStore interface {
	SetBalance(ctx context.Context, username string, balance int64) error
	SetFeatureLock(ctx context.Context, username, feature string, until int64) error
	SetBan(ctx context.Context, username string, until int64) error
	AddWarning(ctx context.Context, username string) (int, error)
}

// Admin bundles the management operations over the bot's components.
type Admin struct {
	registry Registry
	gambling GamblingStore
	rpg      RpgStore
	sfx      SfxStore
	users    UserStore
	isAdmin  func(username string) bool
}

// New creates an Admin over the given components. isAdmin decides who may
// drive the surface (config.Config.IsAdmin in production).
func New(registry Registry, gambling GamblingStore, rpgStore RpgStore, sfxStore SfxStore, users UserStore, isAdmin func(username string) bool) *Admin {
	return &Admin{
		registry: registry,
		gambling: gambling,
		rpg:      rpgStore,
		sfx:      sfxStore,
		users:    users,
		isAdmin:  isAdmin,
	}
}

// Authorize gates the management surface. The transport calls it with the
// authenticated username before dispatching an operation; nil means allowed.
// With no admin check configured everyone is rejected.
func (a *Admin) Authorize(username string) *Response {
	if a.isAdmin != nil && a.isAdmin(username) {
		return nil
	}
	r := fail("%s is not allowed to manage the bot.", username)
	return &r
}

// formInt reads a digit-only numeric field. Returns a Response describing
// the failure, or nil when the value parsed.
func formInt(form map[string]string, key, label string, out *int64) *Response {
	raw, exists := form[key]
	if !exists || raw == "" {
		r := fail("The %s can't be empty.", label)
		return &r
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			r := fail("The %s must be a number.", label)
			return &r
		}
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r := fail("The %s must be a number.", label)
		return &r
	}
	*out = value
	return nil
}

func formFloat(form map[string]string, key, label string, out *float64) *Response {
	raw, exists := form[key]
	if !exists || raw == "" {
		r := fail("The %s can't be empty.", label)
		return &r
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		r := fail("The %s must be a number.", label)
		return &r
	}
	*out = value
	return nil
}

func formBool(form map[string]string, key string) bool {
	switch strings.ToLower(form[key]) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func commandFromForm(form map[string]string) (*model.Command, *Response) {
	name := form["name"]
	if name == "" {
		r := fail("The name can't be empty.")
		return nil, &r
	}

	var cost int64
	if form["cost"] != "" {
		if errResp := formInt(form, "cost", "cost", &cost); errResp != nil {
			return nil, errResp
		}
	}

	category := form["category"]
	if category == "" {
		category = model.CategoryText
	}

	var aliases []string
	if form["aliases"] != "" {
		for _, alias := range strings.Split(form["aliases"], ",") {
			if alias = strings.TrimSpace(alias); alias != "" {
				aliases = append(aliases, alias)
			}
		}
	}

	return &model.Command{
		Name:        name,
		Description: form["description"],
		Usage:       form["usage"],
		Cost:        cost,
		Enabled:     true,
		Aliases:     aliases,
		Category:    category,
		Dynamic:     true,
		Payload:     form["payload"],
	}, nil
}

// AddCommand creates a dynamic command from form values.
func (a *Admin) AddCommand(ctx context.Context, form map[string]string) Response {
	cmd, errResp := commandFromForm(form)
	if errResp != nil {
		return *errResp
	}
	if err := a.registry.Add(ctx, cmd); err != nil {
		return fail("%v", err)
	}
	return ok("Command %s added.", cmd.Name)
}

// UpdateCommand replaces a dynamic command's fields.
func (a *Admin) UpdateCommand(ctx context.Context, form map[string]string) Response {
	cmd, errResp := commandFromForm(form)
	if errResp != nil {
		return *errResp
	}
	if current, exists := a.registry.Get(cmd.Name); exists {
		cmd.Enabled = current.Enabled
	}
	if err := a.registry.Update(ctx, cmd); err != nil {
		return fail("%v", err)
	}
	return ok("Command %s updated.", cmd.Name)
}

// EnableCommand switches a command on.
func (a *Admin) EnableCommand(ctx context.Context, name string) Response {
	if err := a.registry.Enable(ctx, name); err != nil {
		return fail("%v", err)
	}
	return ok("Command %s enabled.", name)
}

// DisableCommand switches a command off.
func (a *Admin) DisableCommand(ctx context.Context, name string) Response {
	if err := a.registry.Disable(ctx, name); err != nil {
		return fail("%v", err)
	}
	return ok("Command %s disabled.", name)
}

// DeleteCommand removes a dynamic command.
func (a *Admin) DeleteCommand(ctx context.Context, name string) Response {
	if err := a.registry.Remove(ctx, name); err != nil {
		return fail("%v", err)
	}
	return ok("Command %s deleted.", name)
}

// SetSlots validates and saves the slots configuration.
func (a *Admin) SetSlots(ctx context.Context, form map[string]string) Response {
	cfg := &model.SlotsConfig{Enabled: formBool(form, "enabled")}

	if errResp := formInt(form, "cost", "cost", &cfg.Cost); errResp != nil {
		return *errResp
	}
	var successRate, jackpot int64
	if errResp := formInt(form, "success_rate", "success rate", &successRate); errResp != nil {
		return *errResp
	}
	if successRate > 99 {
		return fail("The success rate can't be above 99.")
	}
	cfg.SuccessRate = int(successRate)

	for _, field := range []struct {
		key   string
		label string
		out   *float64
	}{
		{"reward_mushroom", "reward mushroom", &cfg.RewardMushroom},
		{"reward_coin", "reward coin", &cfg.RewardCoin},
		{"reward_leaf", "reward leaf", &cfg.RewardLeaf},
		{"reward_diamond", "reward diamond", &cfg.RewardDiamond},
	} {
		if errResp := formFloat(form, field.key, field.label, field.out); errResp != nil {
			return *errResp
		}
	}
	if errResp := formInt(form, "jackpot", "jackpot", &jackpot); errResp != nil {
		return *errResp
	}
	cfg.Jackpot = jackpot

	if err := a.gambling.UpdateSlots(ctx, cfg); err != nil {
		return fail("%v", err)
	}
	return ok("Slots updated.")
}

// SetRoll validates and saves the roll configuration.
func (a *Admin) SetRoll(ctx context.Context, form map[string]string) Response {
	cfg := &model.RollConfig{Enabled: formBool(form, "enabled")}

	if errResp := formInt(form, "minimum_bet", "minimum bet", &cfg.MinBet); errResp != nil {
		return *errResp
	}
	if errResp := formInt(form, "maximum_bet", "maximum bet", &cfg.MaxBet); errResp != nil {
		return *errResp
	}
	if cfg.MaxBet < cfg.MinBet {
		return fail("The maximum bet can't be below the minimum bet.")
	}
	if errResp := formFloat(form, "reward_critical_success", "reward critical success", &cfg.CritSuccessMult); errResp != nil {
		return *errResp
	}
	if errResp := formFloat(form, "reward_critical_failure", "reward critical failure", &cfg.CritFailureMult); errResp != nil {
		return *errResp
	}

	if err := a.gambling.UpdateRoll(ctx, cfg); err != nil {
		return fail("%v", err)
	}
	return ok("Roll updated.")
}

func profileFromForm(form map[string]string) (*model.RpgProfile, *Response) {
	name := form["name"]
	if name == "" {
		r := fail("The name can't be empty.")
		return nil, &r
	}

	p := &model.RpgProfile{Name: name}
	var timer int64
	fields := []struct {
		key   string
		label string
		out   *int64
	}{
		{"cost", "cost", &p.Cost},
		{"win_bonus", "win bonus", &p.WinBonus},
		{"timer", "timer", &timer},
	}
	for _, f := range fields {
		if errResp := formInt(form, f.key, f.label, f.out); errResp != nil {
			return nil, errResp
		}
	}
	p.TimerSeconds = int(timer)

	var winRate int64
	if errResp := formInt(form, "win_rate", "win rate", &winRate); errResp != nil {
		return nil, errResp
	}
	p.WinRate = int(winRate)

	if errResp := formFloat(form, "boss_bonus", "boss bonus", &p.BossBonus); errResp != nil {
		return nil, errResp
	}
	if errResp := formFloat(form, "boss_malus", "boss malus", &p.BossMalus); errResp != nil {
		return nil, errResp
	}

	ratios := []struct {
		key   string
		label string
		out   *int
	}{
		{"ratio_normal_event", "ratio normal event", &p.RatioNormal},
		{"ratio_treasure_event", "ratio treasure event", &p.RatioTreasure},
		{"ratio_monster_event", "ratio monster event", &p.RatioMonster},
		{"ratio_trap_event", "ratio trap event", &p.RatioTrap},
		{"ratio_boss_event", "ratio boss event", &p.RatioBoss},
	}
	for _, f := range ratios {
		var v int64
		if errResp := formInt(form, f.key, f.label, &v); errResp != nil {
			return nil, errResp
		}
		*f.out = int(v)
	}

	if err := rpg.ValidateRatios(p); err != nil {
		r := fail("ratios must be equal to 100")
		return nil, &r
	}
	return p, nil
}

// AddRpgProfile creates an adventure profile and seeds it with the stock
// narrative set.
func (a *Admin) AddRpgProfile(ctx context.Context, form map[string]string) Response {
	p, errResp := profileFromForm(form)
	if errResp != nil {
		return *errResp
	}

	created, err := a.rpg.CreateProfile(ctx, p)
	if err != nil {
		return fail("%v", err)
	}
	for _, event := range rpg.DefaultEvents(created.ID) {
		if _, err := a.rpg.AddEvent(ctx, event); err != nil {
			return fail("%v", err)
		}
	}
	return ok("RPG profile %s added.", p.Name)
}

// UpdateRpgProfile replaces a profile's fields, holding the ratio-sum
// invariant.
func (a *Admin) UpdateRpgProfile(ctx context.Context, form map[string]string) Response {
	p, errResp := profileFromForm(form)
	if errResp != nil {
		return *errResp
	}
	current, err := a.rpg.GetProfileByName(ctx, p.Name)
	if err != nil {
		return fail("%v", err)
	}
	p.ID = current.ID
	if err := a.rpg.UpdateProfile(ctx, p); err != nil {
		return fail("%v", err)
	}
	return ok("RPG profile %s updated.", p.Name)
}

// DeleteRpgProfile removes a profile and, through the schema, its events.
func (a *Admin) DeleteRpgProfile(ctx context.Context, id int64) Response {
	if err := a.rpg.DeleteProfile(ctx, id); err != nil {
		return fail("%v", err)
	}
	return ok("RPG profile %d deleted.", id)
}

// AddRpgEvent adds one narrative event to a profile.
func (a *Admin) AddRpgEvent(ctx context.Context, form map[string]string) Response {
	var rpgID int64
	if errResp := formInt(form, "rpg_id", "rpg id", &rpgID); errResp != nil {
		return *errResp
	}
	event := &model.RpgEvent{RpgID: rpgID, Message: form["message"], Type: form["type"], Outcome: form["outcome"]}
	if errResp := validateEvent(event); errResp != nil {
		return *errResp
	}
	if _, err := a.rpg.AddEvent(ctx, event); err != nil {
		return fail("%v", err)
	}
	return ok("RPG event added.")
}

// UpdateRpgEvent rewrites one narrative event in place.
func (a *Admin) UpdateRpgEvent(ctx context.Context, form map[string]string) Response {
	var id int64
	if errResp := formInt(form, "id", "event id", &id); errResp != nil {
		return *errResp
	}
	event := &model.RpgEvent{ID: id, Message: form["message"], Type: form["type"], Outcome: form["outcome"]}
	if errResp := validateEvent(event); errResp != nil {
		return *errResp
	}
	if err := a.rpg.UpdateEvent(ctx, event); err != nil {
		return fail("%v", err)
	}
	return ok("RPG event %d updated.", id)
}

// ImportRpgEvents bulk-adds narrative events from a JSON array in the
// "events" form field.
func (a *Admin) ImportRpgEvents(ctx context.Context, form map[string]string) Response {
	var rpgID int64
	if errResp := formInt(form, "rpg_id", "rpg id", &rpgID); errResp != nil {
		return *errResp
	}
	if form["events"] == "" {
		return fail("The events can't be empty.")
	}

	var events []struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Outcome string `json:"outcome"`
	}
	if err := json.Unmarshal([]byte(form["events"]), &events); err != nil {
		return fail("The events must be a JSON list.")
	}

	for _, e := range events {
		event := &model.RpgEvent{RpgID: rpgID, Message: e.Message, Type: e.Type, Outcome: e.Outcome}
		if errResp := validateEvent(event); errResp != nil {
			return *errResp
		}
	}
	for _, e := range events {
		event := &model.RpgEvent{RpgID: rpgID, Message: e.Message, Type: e.Type, Outcome: e.Outcome}
		if _, err := a.rpg.AddEvent(ctx, event); err != nil {
			return fail("%v", err)
		}
	}
	return ok("%d RPG events imported.", len(events))
}

// validateEvent checks the narrative fields shared by add, update and
// import.
func validateEvent(e *model.RpgEvent) *Response {
	if e.Message == "" {
		r := fail("The message can't be empty.")
		return &r
	}
	validType := false
	for _, t := range model.EventTypes() {
		if t == e.Type {
			validType = true
			break
		}
	}
	if !validType {
		r := fail("The type must be one of %s.", strings.Join(model.EventTypes(), ", "))
		return &r
	}
	validOutcome := false
	for _, o := range model.Outcomes() {
		if o == e.Outcome {
			validOutcome = true
			break
		}
	}
	if !validOutcome {
		r := fail("The outcome must be one of %s.", strings.Join(model.Outcomes(), ", "))
		return &r
	}
	return nil
}

// DeleteRpgEvent removes one narrative event.
func (a *Admin) DeleteRpgEvent(ctx context.Context, id int64) Response {
	if err := a.rpg.DeleteEvent(ctx, id); err != nil {
		return fail("%v", err)
	}
	return ok("RPG event %d deleted.", id)
}

// SaveSfxGroup creates or updates a sound-effect group.
func (a *Admin) SaveSfxGroup(ctx context.Context, form map[string]string) Response {
	name := form["name"]
	if name == "" {
		return fail("The name can't be empty.")
	}
	group := &model.SfxGroup{
		Name:        name,
		Category:    form["category"],
		Description: form["description"],
		Enabled:     formBool(form, "enabled"),
	}

	if form["id"] != "" {
		var id int64
		if errResp := formInt(form, "id", "id", &id); errResp != nil {
			return *errResp
		}
		group.ID = id
		if err := a.sfx.UpdateGroup(ctx, group); err != nil {
			return fail("%v", err)
		}
		return ok("SFX group %s updated.", name)
	}

	if _, err := a.sfx.CreateGroup(ctx, group); err != nil {
		return fail("%v", err)
	}
	return ok("SFX group %s added.", name)
}

// DeleteSfxGroup removes a group and its events.
func (a *Admin) DeleteSfxGroup(ctx context.Context, id int64) Response {
	if err := a.sfx.DeleteGroup(ctx, id); err != nil {
		return fail("%v", err)
	}
	return ok("SFX group %d deleted.", id)
}

// SaveSfxEvent creates or updates a sound-effect event.
func (a *Admin) SaveSfxEvent(ctx context.Context, form map[string]string) Response {
	name := form["name"]
	if name == "" {
		return fail("The name can't be empty.")
	}
	if form["asset_hash"] == "" {
		return fail("The asset can't be empty.")
	}

	event := &model.SfxEvent{
		AssetHash:    form["asset_hash"],
		Name:         name,
		OutputDevice: form["output_device"],
	}
	var groupID, volume, cost, cooldown int64
	for _, f := range []struct {
		key   string
		label string
		out   *int64
	}{
		{"group_id", "group id", &groupID},
		{"volume", "volume", &volume},
		{"cost", "cost", &cost},
		{"cooldown", "cooldown", &cooldown},
	} {
		if errResp := formInt(form, f.key, f.label, f.out); errResp != nil {
			return *errResp
		}
	}
	if volume > 100 {
		return fail("The volume can't be above 100.")
	}
	event.GroupID = groupID
	event.Volume = int(volume)
	event.Cost = cost
	event.CooldownSeconds = int(cooldown)

	if form["id"] != "" {
		var id int64
		if errResp := formInt(form, "id", "id", &id); errResp != nil {
			return *errResp
		}
		event.ID = id
		if err := a.sfx.UpdateEvent(ctx, event); err != nil {
			return fail("%v", err)
		}
		return ok("SFX event %s updated.", name)
	}

	if _, err := a.sfx.CreateEvent(ctx, event); err != nil {
		return fail("%v", err)
	}
	return ok("SFX event %s added.", name)
}

// DeleteSfxEvent removes a sound-effect event.
func (a *Admin) DeleteSfxEvent(ctx context.Context, id int64) Response {
	if err := a.sfx.DeleteEvent(ctx, id); err != nil {
		return fail("%v", err)
	}
	return ok("SFX event %d deleted.", id)
}

// SetBalance sets a user's balance to an exact amount.
func (a *Admin) SetBalance(ctx context.Context, form map[string]string) Response {
	username := form["username"]
	if username == "" {
		return fail("The username can't be empty.")
	}
	var balance int64
	if errResp := formInt(form, "balance", "balance", &balance); errResp != nil {
		return *errResp
	}
	if err := a.users.SetBalance(ctx, username, balance); err != nil {
		return fail("%v", err)
	}
	return ok("Balance of %s set to %d.", username, balance)
}

// LockFeature locks one feature for a user for a number of seconds; zero
// unlocks.
func (a *Admin) LockFeature(ctx context.Context, form map[string]string, now int64) Response {
	username := form["username"]
	if username == "" {
		return fail("The username can't be empty.")
	}
	feature := form["feature"]
	var seconds int64
	if errResp := formInt(form, "seconds", "seconds", &seconds); errResp != nil {
		return *errResp
	}
	var until int64
	if seconds > 0 {
		until = now + seconds
	}
	if err := a.users.SetFeatureLock(ctx, username, feature, until); err != nil {
		return fail("%v", err)
	}
	if until == 0 {
		return ok("Feature %s unlocked for %s.", feature, username)
	}
	return ok("Feature %s locked for %s.", feature, username)
}

// BanUser bans a user for a number of seconds; zero lifts the ban.
func (a *Admin) BanUser(ctx context.Context, form map[string]string, now int64) Response {
	username := form["username"]
	if username == "" {
		return fail("The username can't be empty.")
	}
	var seconds int64
	if errResp := formInt(form, "seconds", "seconds", &seconds); errResp != nil {
		return *errResp
	}
	var until int64
	if seconds > 0 {
		until = now + seconds
	}
	if err := a.users.SetBan(ctx, username, until); err != nil {
		return fail("%v", err)
	}
	if until == 0 {
		return ok("%s unbanned.", username)
	}
	return ok("%s banned.", username)
}

// WarnUser adds a warning to a user's record.
func (a *Admin) WarnUser(ctx context.Context, username string) Response {
	if username == "" {
		return fail("The username can't be empty.")
	}
	count, err := a.users.AddWarning(ctx, username)
	if err != nil {
		return fail("%v", err)
	}
	return ok("%s warned (%d).", username, count)
}
