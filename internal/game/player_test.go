package game

import (
	"testing"
)

// TestNewPlayer tests player creation with defaults
func TestNewPlayer(t *testing.T) {
	player := NewPlayer(7, PlayerOptions{})

	if player == nil {
		t.Fatal("NewPlayer returned nil")
	}
	if player.Name != "Player_0007" {
		t.Errorf("Expected name 'Player_0007', got '%s'", player.Name)
	}
	if player.Health != 100 || player.MaxHealth != 100 {
		t.Errorf("Expected 100/100 health, got %d/%d", player.Health, player.MaxHealth)
	}
	if player.MaxSlots != 6 {
		t.Errorf("Expected 6 slots, got %d", player.MaxSlots)
	}
	if player.Skin != "player.png" {
		t.Errorf("Expected default skin, got '%s'", player.Skin)
	}
	if player.Equipped != nil {
		t.Error("New player should have nothing equipped")
	}
}

// TestNewPlayerWithOptions tests player creation with custom options
func TestNewPlayerWithOptions(t *testing.T) {
	player := NewPlayer(1, PlayerOptions{
		Name:           "Ace",
		Skin:           "player3.png",
		MaxHealth:      150,
		InventorySlots: 2,
	})

	if player.Name != "Ace" || player.Skin != "player3.png" {
		t.Errorf("Options not applied: %s %s", player.Name, player.Skin)
	}
	if player.Health != 150 {
		t.Errorf("Expected 150 health, got %d", player.Health)
	}

	// An unknown skin falls back to the default
	other := NewPlayer(2, PlayerOptions{Skin: "../../etc/passwd"})
	if other.Skin != "player.png" {
		t.Errorf("Disallowed skin should fall back, got '%s'", other.Skin)
	}
}

// TestInventoryCapacity verifies full inventories reject without mutation
func TestInventoryCapacity(t *testing.T) {
	player := NewPlayer(1, PlayerOptions{})

	for i := 0; i < 6; i++ {
		if !player.AddToInventory(NewWeaponItem(GetWeapon("pistol"))) {
			t.Fatalf("Slot %d should be free", i)
		}
	}

	extra := NewWeaponItem(GetWeapon("rifle"))
	extra.PlaceOnGround(10, 20)
	if player.AddToInventory(extra) {
		t.Error("Seventh item should be rejected")
	}
	if len(player.Inventory) != 6 {
		t.Errorf("Expected 6 items, got %d", len(player.Inventory))
	}
	if extra.Location != LocationGround || extra.WorldX != 10 {
		t.Error("Rejected item must not be mutated")
	}
}

// TestAddSetsOwnership checks placement fields are exclusive
func TestAddSetsOwnership(t *testing.T) {
	player := NewPlayer(3, PlayerOptions{})
	item := NewWeaponItem(GetWeapon("smg"))
	item.PlaceOnGround(50, 60)

	player.AddToInventory(item)

	if item.Location != LocationPlayer || item.OwnerID != 3 {
		t.Errorf("Expected carried by 3, got %s/%d", item.Location, item.OwnerID)
	}
	if item.WorldX != 0 || item.WorldY != 0 {
		t.Error("Carried item should have no world position")
	}
}

// TestEquip covers weapon-only equipping
func TestEquip(t *testing.T) {
	player := NewPlayer(1, PlayerOptions{})
	gun := NewWeaponItem(GetWeapon("pistol"))
	potion := &Item{ID: "potion-1", Kind: ItemKindConsumable, Name: "Potion"}
	player.AddToInventory(gun)
	player.AddToInventory(potion)

	tests := []struct {
		name   string
		itemID string
		want   bool
	}{
		{"weapon in inventory", gun.ID, true},
		{"consumable", potion.ID, false},
		{"missing item", "nope", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := player.Equip(tt.itemID); got != tt.want {
				t.Errorf("Equip(%q) = %v, want %v", tt.itemID, got, tt.want)
			}
		})
	}

	if player.Equipped != gun {
		t.Error("Failed equips must leave the weapon equipped")
	}
	if player.EquippedWeapon() == nil {
		t.Error("EquippedWeapon should return the payload")
	}
}

// TestRemoveEquippedClearsEquip checks atomic unequip on removal
func TestRemoveEquippedClearsEquip(t *testing.T) {
	player := NewPlayer(1, PlayerOptions{})
	gun := NewWeaponItem(GetWeapon("pistol"))
	player.AddToInventory(gun)
	player.Equip(gun.ID)

	removed := player.RemoveFromInventory(gun.ID)

	if removed != gun {
		t.Fatal("Expected the removed item back")
	}
	if player.Equipped != nil || player.EquippedWeapon() != nil {
		t.Error("Removing the equipped item must clear equip state")
	}
	if removed.Location != LocationNone {
		t.Errorf("Removed item should be detached, got %s", removed.Location)
	}
	if player.RemoveFromInventory(gun.ID) != nil {
		t.Error("Second removal should return nil")
	}
}

// TestSetSkin verifies the allow-list
func TestSetSkin(t *testing.T) {
	player := NewPlayer(1, PlayerOptions{})

	tests := []struct {
		skin string
		want bool
	}{
		{"player2.png", true},
		{"player3.png", true},
		{"player4.png", false},
		{"../player.png", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.skin, func(t *testing.T) {
			before := player.Skin
			got := player.SetSkin(tt.skin)
			if got != tt.want {
				t.Errorf("SetSkin(%q) = %v, want %v", tt.skin, got, tt.want)
			}
			if !got && player.Skin != before {
				t.Error("Rejected skin must not change state")
			}
		})
	}
}

// TestTakeDamageClampsAtZero checks health never goes negative
func TestTakeDamageClampsAtZero(t *testing.T) {
	player := NewPlayer(1, PlayerOptions{})

	applied := player.TakeDamage(150)

	if player.Health != 0 {
		t.Errorf("Expected health 0, got %d", player.Health)
	}
	if applied != 100 {
		t.Errorf("Expected 100 damage applied, got %d", applied)
	}
	if player.TakeDamage(10) != 0 || player.Health != 0 {
		t.Error("Damage at zero health should be a no-op")
	}
}

// TestRefillWeapons restores every carried weapon
func TestRefillWeapons(t *testing.T) {
	player := NewPlayer(1, PlayerOptions{})
	a := NewWeaponItem(GetWeapon("pistol"))
	b := NewWeaponItem(GetWeapon("rifle"))
	player.AddToInventory(a)
	player.AddToInventory(b)

	wa, _ := a.AsWeapon()
	wb, _ := b.AsWeapon()
	wa.CurrentAmmo, wa.ReserveAmmo = 0, 0
	wb.CurrentAmmo = 1

	player.RefillWeapons()

	if wa.CurrentAmmo != 10 || wa.ReserveAmmo != 30 || wb.CurrentAmmo != 30 {
		t.Errorf("Refill failed: pistol %d/%d rifle %d", wa.CurrentAmmo, wa.ReserveAmmo, wb.CurrentAmmo)
	}
}
