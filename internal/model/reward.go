package model

// RewardTier is one entry of a server's reward catalog.
// Rewards holds the console commands run on claim, {player} is substituted by the plugin.
type RewardTier struct {
	MinSteps int64    `json:"min_steps"`
	Label    string   `json:"label"`
	ItemID   string   `json:"item_id,omitempty"`
	Rewards  []string `json:"rewards"`
	Position int      `json:"-"`
}

// RewardTierRow is the stored shape of a tier; rewards are kept as JSON text.
type RewardTierRow struct {
	ServerName  string  `db:"server_name"`
	MinSteps    int64   `db:"min_steps"`
	Label       string  `db:"label"`
	ItemID      *string `db:"item_id"`
	RewardsJSON string  `db:"rewards_json"`
	Position    int     `db:"position"`
}

// RewardsPayload is the body of the catalog replace endpoints.
type RewardsPayload struct {
	Tiers []RewardTier `json:"tiers"`
}

// DefaultRewardTiers is served to servers that never configured a catalog.
func DefaultRewardTiers() []RewardTier {
	return []RewardTier{
		{MinSteps: 1000, Label: "Starter", ItemID: "minecraft:bread", Rewards: []string{"give {player} minecraft:bread 3"}, Position: 0},
		{MinSteps: 5000, Label: "Walker", ItemID: "minecraft:iron_ingot", Rewards: []string{"give {player} minecraft:iron_ingot 3"}, Position: 1},
		{MinSteps: 10000, Label: "Legend", ItemID: "minecraft:diamond", Rewards: []string{"give {player} minecraft:diamond 1"}, Position: 2},
	}
}
