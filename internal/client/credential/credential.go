package credential

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// FileStore 把 token 保存在本地文件中，下次启动时直接复用。
type FileStore struct {
	path string
}

// DefaultPath 返回 ~/.tunnelwatch/token。
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("获取用户目录失败：%w", err)
	}
	return filepath.Join(home, ".tunnelwatch", "token"), nil
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

// Load 读取已保存的 token，文件不存在时返回空字符串。
func (s *FileStore) Load() (string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("读取 token 文件失败：%w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (s *FileStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("创建 token 目录失败：%w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("写入 token 文件失败：%w", err)
	}
	return nil
}

// Clear 删除已保存的 token，用于服务端拒绝该 token 之后。
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("删除 token 文件失败：%w", err)
	}
	return nil
}

// Prompter 向用户索要 token。
type Prompter func() (string, error)

// TerminalPrompt 在终端上不回显地读取 token；in 不是终端时按行读取。
func TerminalPrompt(in *os.File, out io.Writer) Prompter {
	return func() (string, error) {
		fmt.Fprint(out, "Auth token (admin): ")
		fd := int(in.Fd())
		if term.IsTerminal(fd) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			if err != nil {
				return "", fmt.Errorf("读取 token 失败：%w", err)
			}
			return strings.TrimSpace(string(b)), nil
		}
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("读取 token 失败：%w", err)
		}
		return strings.TrimSpace(line), nil
	}
}

// Resolve 依次使用：显式给出的 token、已保存的 token、提示用户输入（并保存）。
// prompt 为 nil 时不提示，返回空 token（适用于未开启鉴权的服务端）。
func Resolve(explicit string, fs *FileStore, prompt Prompter) (string, error) {
	if t := strings.TrimSpace(explicit); t != "" {
		return t, nil
	}
	if fs != nil {
		t, err := fs.Load()
		if err != nil {
			return "", err
		}
		if t != "" {
			return t, nil
		}
	}
	if prompt == nil {
		return "", nil
	}
	t, err := prompt()
	if err != nil {
		return "", err
	}
	if t != "" && fs != nil {
		if err := fs.Save(t); err != nil {
			return "", err
		}
	}
	return t, nil
}
