package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestAuthority(t *testing.T) *TokenAuthority {
	t.Helper()
	a, err := NewTokenAuthorityFromBase64(GenerateSecureSecret(), "voxelworld", time.Hour)
	if err != nil {
		t.Fatalf("Ошибка создания authority: %v", err)
	}
	return a
}

// TestIssue тестирует создание JWT токена
func TestIssue(t *testing.T) {
	a := newTestAuthority(t)

	token, err := a.Issue("builder", false)
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}

	// Проверяем, что токен содержит точки (разделители частей JWT)
	if strings.Count(token, ".") != 2 {
		t.Errorf("Неверный формат JWT токена: %s", token)
	}
}

// TestValidate тестирует валидацию JWT токена
func TestValidate(t *testing.T) {
	a := newTestAuthority(t)

	token, err := a.Issue("admin", true)
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}

	claims, err := a.Validate(token)
	if err != nil {
		t.Fatalf("Валидный токен определен как недействительный: %v", err)
	}
	if claims.Operator != "admin" {
		t.Errorf("Неверный оператор: ожидался admin, получен %s", claims.Operator)
	}
	if !claims.IsAdmin {
		t.Error("Флаг администратора потерян")
	}
}

// TestValidate_ForeignSecret проверяет, что чужой токен отклоняется
func TestValidate_ForeignSecret(t *testing.T) {
	issuer := newTestAuthority(t)
	verifier := newTestAuthority(t)

	token, err := issuer.Issue("intruder", true)
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}

	if _, err := verifier.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Ожидалась ErrInvalidToken, получено %v", err)
	}
}

// TestValidate_Expired проверяет истечение токена
func TestValidate_Expired(t *testing.T) {
	a := newTestAuthority(t)

	token, err := a.Issue("builder", false)
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}

	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := a.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Истёкший токен принят: %v", err)
	}
}

// TestValidate_Garbage проверяет мусорные токены
func TestValidate_Garbage(t *testing.T) {
	a := newTestAuthority(t)

	for _, token := range []string{"", "abc", "a.b.c"} {
		if _, err := a.Validate(token); err == nil {
			t.Errorf("Токен %q принят", token)
		}
	}
}

// TestNewTokenAuthority_ShortSecret проверяет минимальную длину секрета
func TestNewTokenAuthority_ShortSecret(t *testing.T) {
	if _, err := NewTokenAuthority([]byte("short"), "voxelworld", 0); !errors.Is(err, ErrSecretTooShort) {
		t.Errorf("Ожидалась ErrSecretTooShort, получено %v", err)
	}
	if _, err := NewTokenAuthorityFromBase64("not base64!", "voxelworld", 0); err == nil {
		t.Error("Некорректный base64 принят")
	}
}
