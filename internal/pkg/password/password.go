package password

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt 只处理前 72 字节输入，超长密码会被静默截断。
// 这里先做一次 SHA256 并取十六进制串（固定 64 字节）再交给 bcrypt，
// Hash 和 Verify 两条路径必须使用同一个预哈希。

// Hash 计算密码哈希。
func Hash(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(preHash(plain)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify 校验明文密码与存储的哈希是否匹配。
//
// 存储哈希格式非法时返回 false，不会报错。
func Verify(plain string, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(preHash(plain))) == nil
}

func preHash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
