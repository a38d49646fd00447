package combat

import "slices"

// Category is a unique-skill domain category.
type Category string

const (
	CategoryPerception    Category = "perception"
	CategoryManifestation Category = "manifestation"
	CategoryManipulation  Category = "manipulation"
	CategoryContract      Category = "contract"
	CategoryObfuscation   Category = "obfuscation"
)

// Categories lists every domain category.
var Categories = []Category{
	CategoryPerception,
	CategoryManifestation,
	CategoryManipulation,
	CategoryContract,
	CategoryObfuscation,
}

// DomainAuthorityBonus is the fixed bonus a domain grants over same-category skills.
const DomainAuthorityBonus = 0.03

// Domain describes the authority a unique skill holds over ordinary skills of its category.
type Domain struct {
	Category Category
	Immunity string
	Flavour  string
}

var domains = map[Category]Domain{
	CategoryPerception: {
		Category: CategoryPerception,
		Immunity: "Không thể bị đánh lừa bởi ảo ảnh hay che giấu cùng hệ",
		Flavour:  "Ánh mắt xuyên qua mọi lớp màn",
	},
	CategoryManifestation: {
		Category: CategoryManifestation,
		Immunity: "Vật chất hiện hình cùng hệ không thể trói buộc",
		Flavour:  "Ý chí hóa thành hình",
	},
	CategoryManipulation: {
		Category: CategoryManipulation,
		Immunity: "Không bị điều khiển bởi kỹ năng thao túng cùng hệ",
		Flavour:  "Sợi dây vô hình thuộc về kẻ nắm quyền",
	},
	CategoryContract: {
		Category: CategoryContract,
		Immunity: "Khế ước cùng hệ không ràng buộc được chủ nhân",
		Flavour:  "Lời thề nặng hơn xiềng xích",
	},
	CategoryObfuscation: {
		Category: CategoryObfuscation,
		Immunity: "Không bị truy dấu bởi kỹ năng dò tìm cùng hệ",
		Flavour:  "Bóng tối che chở bóng tối",
	},
}

// DomainFor returns the domain definition for a category.
func DomainFor(c Category) (Domain, bool) {
	d, ok := domains[c]
	return d, ok
}

// TierCap is the highest ordinary-skill tier the domain ignores at a growth stage.
func TierCap(stage string) int {
	if stage == "ultimate" {
		return 99
	}
	return 3
}

// EnemySkill is an opponent skill as described by a boss template.
type EnemySkill struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Tier     int      `json:"tier"`
}

// ApplyDomainBonus returns DomainAuthorityBonus when any enemy skill shares the
// player's category at or below the stage's tier cap, otherwise 0.
func ApplyDomainBonus(playerCategory Category, enemySkills []EnemySkill, playerStage string) float64 {
	if !slices.Contains(Categories, playerCategory) {
		return 0
	}
	limit := TierCap(playerStage)
	for _, s := range enemySkills {
		if s.Category == playerCategory && s.Tier <= limit {
			return DomainAuthorityBonus
		}
	}
	return 0
}
