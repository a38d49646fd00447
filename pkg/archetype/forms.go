package archetype

import "github.com/jwebster45206/isekai-engine/pkg/player"

// Path is the direction a transmutation takes from the origin archetype.
type Path string

const (
	// PathAligned keeps faith with the seed values.
	PathAligned Path = "aligned"
	// PathDiverged breaks from them.
	PathDiverged Path = "diverged"
	// PathReputation is shaped by how the world sees the player.
	PathReputation Path = "reputation"
)

// Form is one transmuted archetype.
type Form struct {
	ID          string           `json:"id"`
	Origin      player.Archetype `json:"origin"`
	Path        Path             `json:"path"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
}

// Forms holds the 18 transmuted forms, three per origin archetype.
var Forms = map[player.Archetype]map[Path]Form{
	player.ArchetypeVanguard: {
		PathAligned:    {Name: "Thành Lũy Bất Động", Description: "Tấm khiên không bao giờ lùi, vì đã biết rõ mình bảo vệ điều gì."},
		PathDiverged:   {Name: "Kẻ Phá Xiềng", Description: "Người từng đứng đầu hàng nay quay mũi giáo vào chính xiềng xích đã trói mình."},
		PathReputation: {Name: "Ngọn Cờ Tiền Tuyến", Description: "Cái tên được hô vang trước mỗi trận, nặng hơn cả thanh kiếm."},
	},
	player.ArchetypeCatalyst: {
		PathAligned:    {Name: "Ngọn Lửa Dẫn Đường", Description: "Sự thay đổi đi theo bước chân, nhưng luôn hướng về một điều đúng."},
		PathDiverged:   {Name: "Hạt Giống Hỗn Loạn", Description: "Mọi thứ chạm vào đều biến đổi, kể cả những gì từng được trân trọng."},
		PathReputation: {Name: "Kẻ Khuấy Động Thời Cuộc", Description: "Nơi nào có tin đồn về người, nơi đó sắp có biến."},
	},
	player.ArchetypeSovereign: {
		PathAligned:    {Name: "Minh Quân Vô Miện", Description: "Quyền uy đến từ lời hứa được giữ, không cần ngai vàng."},
		PathDiverged:   {Name: "Bạo Chúa Cô Độc", Description: "Ý chí đứng trên mọi người, và không còn ai đứng cạnh."},
		PathReputation: {Name: "Vương Giả Trong Lời Đồn", Description: "Kẻ khác quỳ trước cái tên trước khi thấy mặt người."},
	},
	player.ArchetypeSeeker: {
		PathAligned:    {Name: "Người Giữ Chân Lý", Description: "Sự thật được tìm thấy và được canh giữ."},
		PathDiverged:   {Name: "Kẻ Đào Bới Cấm Thư", Description: "Câu hỏi đã vượt qua ranh giới mà câu trả lời không nên chạm tới."},
		PathReputation: {Name: "Hiền Giả Lang Thang", Description: "Người ta tìm đến để hỏi, dù chính người chưa từng dừng lại."},
	},
	player.ArchetypeTactician: {
		PathAligned:    {Name: "Kỳ Thủ Thiên Cơ", Description: "Mỗi nước đi phục vụ một mục đích chưa từng thay đổi."},
		PathDiverged:   {Name: "Bóng Ma Mưu Lược", Description: "Bàn cờ không còn phe, chỉ còn những quân cờ."},
		PathReputation: {Name: "Quân Sư Vô Danh", Description: "Chiến thắng mang tên kẻ khác, nhưng ai cũng biết ai đứng sau."},
	},
	player.ArchetypeWanderer: {
		PathAligned:    {Name: "Lữ Khách Giữ Lửa", Description: "Đi khắp nơi mà vẫn mang theo ngọn lửa quê nhà."},
		PathDiverged:   {Name: "Kẻ Lạc Đường Vĩnh Cửu", Description: "Con đường đã nuốt mất nơi bắt đầu."},
		PathReputation: {Name: "Truyền Thuyết Dọc Đường", Description: "Mỗi quán trọ kể một phiên bản khác về cùng một người."},
	},
}

func init() {
	for origin, paths := range Forms {
		for path, f := range paths {
			f.ID = string(origin) + "_" + string(path)
			f.Origin = origin
			f.Path = path
			paths[path] = f
		}
	}
}

// FormByID looks a form up by its id, e.g. "seeker_diverged".
func FormByID(id string) (Form, bool) {
	for _, paths := range Forms {
		for _, f := range paths {
			if f.ID == id {
				return f, true
			}
		}
	}
	return Form{}, false
}
