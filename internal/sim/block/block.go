// Package block defines voxel materials: an identifier plus the small
// property bag that directional and half-height pieces carry.
package block

import (
	"fmt"
	"sort"
	"strings"
)

// ID names a material, e.g. "GRASS_BLOCK".
type ID string

// Materials the engine refers to directly. Everything else only appears
// in the rule table.
const (
	Air            ID = "AIR"
	Water          ID = "WATER"
	Lava           ID = "LAVA"
	Bedrock        ID = "BEDROCK"
	Stone          ID = "STONE"
	Cobblestone    ID = "COBBLESTONE"
	Deepslate      ID = "DEEPSLATE"
	GrassBlock     ID = "GRASS_BLOCK"
	Dirt           ID = "DIRT"
	Sand           ID = "SAND"
	Gravel         ID = "GRAVEL"
	Clay           ID = "CLAY"
	Ice            ID = "ICE"
	SnowBlock      ID = "SNOW_BLOCK"
	Snow           ID = "SNOW"
	ShortGrass     ID = "SHORT_GRASS"
	Poppy          ID = "POPPY"
	OakLog         ID = "OAK_LOG"
	BirchLog       ID = "BIRCH_LOG"
	OakLeaves      ID = "OAK_LEAVES"
	BirchLeaves    ID = "BIRCH_LEAVES"
	GoldOre        ID = "GOLD_ORE"
	GoldBlock      ID = "GOLD_BLOCK"
	Obsidian       ID = "OBSIDIAN"
	CryingObsidian ID = "CRYING_OBSIDIAN"
	NetherPortal   ID = "NETHER_PORTAL"

	Netherrack               ID = "NETHERRACK"
	SoulSoil                 ID = "SOUL_SOIL"
	SoulSand                 ID = "SOUL_SAND"
	Basalt                   ID = "BASALT"
	PolishedBasalt           ID = "POLISHED_BASALT"
	Blackstone               ID = "BLACKSTONE"
	PolishedBlackstone       ID = "POLISHED_BLACKSTONE"
	PolishedBlackstoneBricks ID = "POLISHED_BLACKSTONE_BRICKS"
	GildedBlackstone         ID = "GILDED_BLACKSTONE"
	NetherGoldOre            ID = "NETHER_GOLD_ORE"
	MagmaBlock               ID = "MAGMA_BLOCK"
	Shroomlight              ID = "SHROOMLIGHT"
	CrimsonStem              ID = "CRIMSON_STEM"
	WarpedStem               ID = "WARPED_STEM"
	CrimsonFungus            ID = "CRIMSON_FUNGUS"
	WarpedFungus             ID = "WARPED_FUNGUS"
	CrimsonNylium            ID = "CRIMSON_NYLIUM"
	WarpedNylium             ID = "WARPED_NYLIUM"
	CrimsonRoots             ID = "CRIMSON_ROOTS"
	WarpedRoots              ID = "WARPED_ROOTS"
	NetherSprouts            ID = "NETHER_SPROUTS"
	NetherWartBlock          ID = "NETHER_WART_BLOCK"
	WarpedWartBlock          ID = "WARPED_WART_BLOCK"
)

type Axis uint8

const (
	AxisY Axis = iota
	AxisX
	AxisZ
)

type SlabType uint8

const (
	SlabBottom SlabType = iota
	SlabTop
	SlabDouble
)

type Facing uint8

const (
	FacingNorth Facing = iota
	FacingSouth
	FacingWest
	FacingEast
)

type Half uint8

const (
	HalfBottom Half = iota
	HalfTop
)

type StairShape uint8

const (
	ShapeStraight StairShape = iota
	ShapeInnerLeft
	ShapeInnerRight
	ShapeOuterLeft
	ShapeOuterRight
)

// Props is the property bag. The zero value holds every property's default.
type Props struct {
	Axis        Axis
	Slab        SlabType
	Facing      Facing
	Half        Half
	Shape       StairShape
	Waterlogged bool
}

// State is a material with its properties. It is comparable.
type State struct {
	ID    ID
	Props Props
}

// Of returns id with default properties.
func Of(id ID) State { return State{ID: id} }

func (s State) Is(id ID) bool { return s.ID == id }

func (s State) IsAir() bool { return s.ID == Air || s.ID == "" }

var (
	axisNames   = [...]string{AxisY: "y", AxisX: "x", AxisZ: "z"}
	slabNames   = [...]string{SlabBottom: "bottom", SlabTop: "top", SlabDouble: "double"}
	facingNames = [...]string{FacingNorth: "north", FacingSouth: "south", FacingWest: "west", FacingEast: "east"}
	halfNames   = [...]string{HalfBottom: "bottom", HalfTop: "top"}
	shapeNames  = [...]string{
		ShapeStraight:   "straight",
		ShapeInnerLeft:  "inner_left",
		ShapeInnerRight: "inner_right",
		ShapeOuterLeft:  "outer_left",
		ShapeOuterRight: "outer_right",
	}
)

// String renders the state as ID[k=v,...], listing only non-default
// properties. The result round-trips through Parse.
func (s State) String() string {
	var kv []string
	p := s.Props
	if p.Axis != AxisY {
		kv = append(kv, "axis="+axisNames[p.Axis])
	}
	if p.Slab != SlabBottom {
		kv = append(kv, "type="+slabNames[p.Slab])
	}
	if p.Facing != FacingNorth {
		kv = append(kv, "facing="+facingNames[p.Facing])
	}
	if p.Half != HalfBottom {
		kv = append(kv, "half="+halfNames[p.Half])
	}
	if p.Shape != ShapeStraight {
		kv = append(kv, "shape="+shapeNames[p.Shape])
	}
	if p.Waterlogged {
		kv = append(kv, "waterlogged=true")
	}
	if len(kv) == 0 {
		return string(s.ID)
	}
	sort.Strings(kv)
	return string(s.ID) + "[" + strings.Join(kv, ",") + "]"
}

// Parse is the inverse of State.String.
func Parse(str string) (State, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return State{}, fmt.Errorf("empty block state")
	}
	open := strings.IndexByte(str, '[')
	if open < 0 {
		return Of(ID(str)), nil
	}
	if !strings.HasSuffix(str, "]") {
		return State{}, fmt.Errorf("block state %q: missing ]", str)
	}
	s := Of(ID(str[:open]))
	body := str[open+1 : len(str)-1]
	if body == "" {
		return s, nil
	}
	for _, pair := range strings.Split(body, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return State{}, fmt.Errorf("block state %q: bad property %q", str, pair)
		}
		var err error
		switch k {
		case "axis":
			s.Props.Axis, err = lookup(axisNames[:], v, Axis(0))
		case "type":
			s.Props.Slab, err = lookup(slabNames[:], v, SlabType(0))
		case "facing":
			s.Props.Facing, err = lookup(facingNames[:], v, Facing(0))
		case "half":
			s.Props.Half, err = lookup(halfNames[:], v, Half(0))
		case "shape":
			s.Props.Shape, err = lookup(shapeNames[:], v, StairShape(0))
		case "waterlogged":
			s.Props.Waterlogged = v == "true"
		default:
			err = fmt.Errorf("unknown property")
		}
		if err != nil {
			return State{}, fmt.Errorf("block state %q: %s: %w", str, k, err)
		}
	}
	return s, nil
}

func lookup[T ~uint8](names []string, v string, _ T) (T, error) {
	for i, n := range names {
		if n == v {
			return T(i), nil
		}
	}
	return 0, fmt.Errorf("unknown value %q", v)
}
