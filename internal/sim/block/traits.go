package block

import "strings"

// Non-opaque pieces identified by name suffix.
var seeThroughSuffixes = []string{
	"_SLAB", "_STAIRS", "_FENCE", "_FENCE_GATE", "_WALL", "_DOOR", "_TRAPDOOR",
	"_BUTTON", "_PRESSURE_PLATE", "_SIGN", "_SAPLING", "_LEAVES", "_TORCH",
	"_CARPET", "_PANE", "_FUNGUS", "_ROOTS", "_MUSHROOM", "_TULIP", "_STEM_PLANT",
	"_CAMPFIRE", "_VINES", "_VINES_PLANT", "_CROP",
}

var seeThrough = map[ID]bool{
	Air: true, Water: true, Lava: true, NetherPortal: true,
	"GLASS": true, "TINTED_GLASS": true, "IRON_BARS": true,
	"ICE": true, "SNOW": true, "POWDER_SNOW": true, "COBWEB": true,
	"SHORT_GRASS": true, "TALL_GRASS": true, "FERN": true, "LARGE_FERN": true,
	"DEAD_BUSH": true, "SEAGRASS": true, "TALL_SEAGRASS": true, "KELP": true,
	"KELP_PLANT": true, "LILY_PAD": true, "VINE": true, "GLOW_LICHEN": true,
	"SUGAR_CANE": true, "BAMBOO": true, "CACTUS": true, "COCOA": true,
	"DANDELION": true, "POPPY": true, "BLUE_ORCHID": true, "ALLIUM": true,
	"AZURE_BLUET": true, "OXEYE_DAISY": true, "CORNFLOWER": true,
	"LILY_OF_THE_VALLEY": true, "SUNFLOWER": true, "LILAC": true, "ROSE_BUSH": true,
	"PEONY": true, "WITHER_ROSE": true, "TORCHFLOWER": true, "PITCHER_PLANT": true,
	"WHEAT": true, "CARROTS": true, "POTATOES": true, "BEETROOTS": true,
	"MELON_STEM": true, "PUMPKIN_STEM": true, "ATTACHED_MELON_STEM": true,
	"ATTACHED_PUMPKIN_STEM": true, "SWEET_BERRY_BUSH": true, "AZALEA": true,
	"FLOWERING_AZALEA": true, "MANGROVE_PROPAGULE": true, "MANGROVE_ROOTS": true,
	"NETHER_SPROUTS": true, "FIRE": true, "SOUL_FIRE": true, "HONEY_BLOCK": true,
	"BARRIER": true, "END_PORTAL": true, "END_PORTAL_FRAME": true,
	"DIRT_PATH": true, "FARMLAND": true, "SOUL_SAND": true, "MUD": true,
	"CHAIN": true, "LANTERN": true, "SOUL_LANTERN": true,
}

// Opaque reports whether id is a full cube that blocks sight. Liquids,
// plants, glass and partial pieces are not.
func Opaque(id ID) bool {
	if id == "" || seeThrough[id] {
		return false
	}
	s := string(id)
	for _, suf := range seeThroughSuffixes {
		if strings.HasSuffix(s, suf) {
			return false
		}
	}
	return true
}

// Solid reports whether id is a full opaque cube that can hold up what
// rests on it. Path, farmland, soul sand and mud are slightly short of a
// full cube but still carry weight.
func Solid(id ID) bool {
	switch id {
	case "DIRT_PATH", "FARMLAND", SoulSand, "MUD":
		return true
	}
	return Opaque(id)
}

// Liquid reports whether id is a fluid source.
func Liquid(id ID) bool { return id == Water || id == Lava }
