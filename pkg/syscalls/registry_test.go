package syscalls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_CoversAllFamilies(t *testing.T) {
	names := []string{
		"unlink", "unlinkat", "rmdir",
		"rename", "renameat", "renameat2",
		"chmod", "fchmod", "fchmodat",
		"chown", "fchown", "lchown", "fchownat",
		"mkdir", "mkdirat",
		"link", "linkat", "symlink", "symlinkat",
		"open", "creat", "openat",
		"mknod", "mknodat", "mkfifo", "mkfifoat",
		"write", "pwrite", "writev", "pwritev",
		"dup", "dup2", "dup3",
	}

	for _, name := range names {
		spec, ok := Lookup(name)
		require.True(t, ok, "%s must be registered", name)
		assert.Equal(t, name, spec.Name)
		assert.NotNil(t, spec.Format)
	}

	assert.Len(t, Names(), len(names), "exactly one spec per syscall name")
}

func TestLookup_Miss(t *testing.T) {
	_, ok := Lookup("clone")
	assert.False(t, ok)
}

func TestSignatures_MatchCallingConventions(t *testing.T) {
	tests := []struct {
		name  string
		arity int
		first ArgKind
	}{
		{"unlink", 1, ArgPath},
		{"unlinkat", 3, ArgDirFD},
		{"renameat2", 5, ArgDirFD},
		{"fchownat", 5, ArgDirFD},
		{"mknod", 3, ArgPath},
		{"mknodat", 4, ArgDirFD},
		{"pwritev", 4, ArgFD},
		{"dup3", 3, ArgFD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, ok := Lookup(tt.name)
			require.True(t, ok)
			assert.Len(t, spec.Args, tt.arity)
			assert.Equal(t, tt.first, spec.Args[0].Kind)
		})
	}
}

func TestDecode_SignExtendsNarrowInts(t *testing.T) {
	spec, _ := Lookup("chown")

	args, err := Decode(spec, []Raw{Str("/x"), Word(0xffffffff), Word(7)})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), args.Int(1), "uid_t -1 arrives zero-extended in the register word")
	assert.Equal(t, int64(7), args.Int(2))
}

func TestDecode_SizeStaysUnsigned(t *testing.T) {
	spec, _ := Lookup("write")

	args, err := Decode(spec, []Raw{Word(1), Word(0x7000), Word(0x100000000)})
	require.NoError(t, err)
	assert.Equal(t, int64(0x100000000), args.Int(2), "size_t is not truncated to 32 bits")
}

func TestDecode_RejectsNegativeSize(t *testing.T) {
	spec, _ := Lookup("write")

	_, err := Decode(spec, []Raw{Word(1), Word(0x7000), Word(0xffffffffffffffff)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadArgument)
	assert.Contains(t, err.Error(), "negative")
}

func TestArgKind_IsString(t *testing.T) {
	assert.True(t, ArgPath.IsString())
	assert.False(t, ArgFD.IsString())
	assert.False(t, ArgPointer.IsString())
}

func TestFormatPermissions(t *testing.T) {
	tests := []struct {
		mode uint32
		want string
	}{
		{0000, "---------"},
		{0644, "rw-r--r--"},
		{0755, "rwxr-xr-x"},
		{0754, "rwxr-xr--"},
		{0777, "rwxrwxrwx"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPermissions(tt.mode), "%#o", tt.mode)
	}
}
