package utils

import (
	"math/rand"
	"slices"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

var shifts = []domain.Shift{domain.ShiftMorning, domain.ShiftEvening}

// GenerateRandomShift 有一定概率返回 nil，模拟还没有分配班次的学员
func GenerateRandomShift() *domain.Shift {
	if rand.Intn(5) == 0 {
		return nil
	}
	shift := shifts[rand.Intn(len(shifts))]
	return &shift
}

// GenerateRandomWorkingDays 大多数用户沿用班次默认值（返回 nil），少数用户有自己的工作日
func GenerateRandomWorkingDays() []int32 {
	if rand.Intn(3) != 0 {
		return nil
	}

	// 用 Fisher-Yates 洗牌算法取一个随机子集
	days := []int32{0, 1, 2, 3, 4, 5, 6}
	for i := len(days) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		days[i], days[j] = days[j], days[i]
	}

	n := rand.Intn(len(days)) + 1
	subset := days[:n]
	slices.Sort(subset)

	return subset
}

func GenerateRandomUser(password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         domain.RoleIncubatee,
		Shift:        GenerateRandomShift(),
		WorkingDays:  GenerateRandomWorkingDays(),
	}

	return user, nil
}
