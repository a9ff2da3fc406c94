package syscalls

import (
	"fmt"
	"strings"

	"github.com/jingkaihe/whatif/internal/errx"
	"github.com/jingkaihe/whatif/pkg/api"
)

// Linux ABI flag and mode constants. These describe the traced process's
// kernel interface, so they are spelled out rather than taken from the
// host-dependent values in package syscall.
const (
	flagWronly = 0x1
	flagRdwr   = 0x2
	flagCreat  = 0x40
	flagTrunc  = 0x200
	flagAppend = 0x400

	creatFlags = flagCreat | flagWronly | flagTrunc

	typeMask = 0170000
	typeFIFO = 0010000
	typeChar = 0020000
	typeBlk  = 0060000
	typeSock = 0140000

	fifoType = typeFIFO
)

func formatDelete(env Env, syscall, path string) (*api.Operation, error) {
	return &api.Operation{
		Syscall: syscall,
		Label:   api.LabelDelete,
		Path:    env.Abs(path),
	}, nil
}

func formatMove(env Env, syscall, oldPath, newPath string) (*api.Operation, error) {
	src := env.Abs(oldPath)
	label, target := env.ClassifyMove(src, env.Abs(newPath))
	return &api.Operation{
		Syscall: syscall,
		Label:   label,
		Path:    src,
		Detail:  target,
	}, nil
}

func formatChmod(env Env, syscall, absPath string, mode uint32) (*api.Operation, error) {
	return &api.Operation{
		Syscall: syscall,
		Label:   api.LabelChmod,
		Path:    absPath,
		Detail:  FormatPermissions(mode),
	}, nil
}

func formatChown(env Env, syscall, absPath string, owner, group int) (*api.Operation, error) {
	var label, detail string
	switch {
	case owner == -1:
		name, err := env.LookupGroup(group)
		if err != nil {
			return nil, errx.Wrap(ErrResolveGID, err)
		}
		label = api.LabelChgrp
		detail = name
	case group == -1:
		name, err := env.LookupOwner(owner)
		if err != nil {
			return nil, errx.Wrap(ErrResolveUID, err)
		}
		label = api.LabelChown
		detail = name
	default:
		ownerName, err := env.LookupOwner(owner)
		if err != nil {
			return nil, errx.Wrap(ErrResolveUID, err)
		}
		groupName, err := env.LookupGroup(group)
		if err != nil {
			return nil, errx.Wrap(ErrResolveGID, err)
		}
		label = api.LabelChown
		detail = ownerName + ":" + groupName
	}

	return &api.Operation{
		Syscall: syscall,
		Label:   label,
		Path:    absPath,
		Detail:  detail,
	}, nil
}

func formatMkdir(env Env, syscall, path string) (*api.Operation, error) {
	return &api.Operation{
		Syscall: syscall,
		Label:   api.LabelMkdir,
		Path:    env.Abs(path),
	}, nil
}

func formatLink(env Env, syscall, linkPath, target string, symbolic bool) (*api.Operation, error) {
	label := api.LabelHardlink
	if symbolic {
		label = api.LabelSymlink
	}
	return &api.Operation{
		Syscall: syscall,
		Label:   label,
		Path:    env.Abs(linkPath),
		Detail:  env.Abs(target),
	}, nil
}

func formatOpen(env Env, syscall, path string, flags int) (*api.Operation, error) {
	abs := env.Abs(path)
	switch {
	case env.DeviceAllowed(abs):
		return nil, nil
	case flags&flagCreat != 0 && !env.Exists(abs):
		return &api.Operation{Syscall: syscall, Label: api.LabelCreateFile, Path: abs}, nil
	case flags&flagTrunc != 0 && env.Exists(abs):
		return &api.Operation{Syscall: syscall, Label: api.LabelTruncateFile, Path: abs}, nil
	default:
		return nil, nil
	}
}

func formatMknod(env Env, syscall, path string, mode uint32) (*api.Operation, error) {
	abs := env.Abs(path)
	if env.Exists(abs) {
		return nil, nil
	}

	var label string
	switch mode & typeMask {
	case typeChar:
		label = api.LabelMkchar
	case typeBlk:
		label = api.LabelMkblock
	case typeFIFO:
		label = api.LabelMkfifo
	case typeSock:
		label = api.LabelMksock
	default:
		// mknod(2): zero file type is equivalent to S_IFREG.
		label = api.LabelCreateFile
	}

	return &api.Operation{Syscall: syscall, Label: label, Path: abs}, nil
}

func formatWrite(env Env, syscall string, fd int, count int64) (*api.Operation, error) {
	if !env.DescriptorTracked(fd) {
		return nil, nil
	}
	return &api.Operation{
		Syscall: syscall,
		Label:   api.LabelWrite,
		Path:    env.DescriptorPath(fd),
		Detail:  fmt.Sprintf("%d bytes", count),
	}, nil
}

// FormatPermissions renders mode bits in ls-style rwx triplets.
func FormatPermissions(mode uint32) string {
	var b strings.Builder
	for shift := 6; shift >= 0; shift -= 3 {
		bits := mode >> uint(shift)
		for i, c := range "rwx" {
			if bits&(4>>uint(i)) != 0 {
				b.WriteRune(c)
			} else {
				b.WriteByte('-')
			}
		}
	}
	return b.String()
}
