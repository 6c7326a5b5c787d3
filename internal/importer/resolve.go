package importer

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/internal/msproject"
)

// DefaultEmailDomain 导入资源生成邮箱时使用的域名
const DefaultEmailDomain = "salam.com"

// EmailForName 小写姓名，空白替换为 "."，再拼接域名
func EmailForName(name, domain string) string {
	local := strings.Join(strings.Fields(strings.ToLower(name)), ".")
	return local + "@" + domain
}

// resolveResources 按生成的邮箱查找或创建员工，已有员工原样复用
func (s *session) resolveResources(ctx context.Context, resources []msproject.Resource) error {
	for _, res := range resources {
		uid := strings.TrimSpace(res.UID)
		name := strings.TrimSpace(res.Name)
		if uid == "0" {
			s.warn(KindResource, uid, ReasonUnassignedResource)
			continue
		}
		if name == "" {
			s.warn(KindResource, uid, ReasonEmptyResourceName)
			continue
		}

		email := EmailForName(name, s.emailDomain)
		emp := &model.Employee{NameEn: name, Email: email}
		created, err := s.repo.EnsureEmployee(ctx, emp)
		if err != nil {
			return err
		}
		if created {
			s.result.EmployeesCreated++
		} else {
			s.result.EmployeesReused++
		}
		s.resourceMap[uid] = emp.ID
	}
	return nil
}

// resolveAssignments 只处理任务和资源都能解析的分配
func (s *session) resolveAssignments(ctx context.Context, assignments []msproject.Assignment) error {
	for _, a := range assignments {
		key := a.TaskUID + "/" + a.ResourceUID
		taskID, okTask := s.taskMap[strings.TrimSpace(a.TaskUID)]
		empID, okRes := s.resourceMap[strings.TrimSpace(a.ResourceUID)]
		if !okTask || !okRes {
			s.warn(KindAssignment, key, ReasonDanglingAssignment)
			continue
		}

		inserted, err := s.repo.InsertAssignment(ctx, &model.TaskAssignment{
			TaskID:     taskID,
			EmployeeID: empID,
			Units:      msproject.ParseUnits(a.Units),
			Work:       msproject.ParseWork(a.Work),
			Role:       "member",
		})
		if err != nil {
			return err
		}
		if !inserted {
			s.warn(KindAssignment, key, ReasonDuplicateAssignment)
			continue
		}
		s.result.Assignments++
	}
	return nil
}

// resolveDependencies 导入 PredecessorLink
func (s *session) resolveDependencies(ctx context.Context, tasks []msproject.Task) error {
	for _, rec := range tasks {
		succID, ok := s.taskMap[rec.UID]
		if !ok {
			continue
		}
		for _, link := range rec.Predecessors {
			predUID := strings.TrimSpace(link.PredecessorUID)
			predID, ok := s.taskMap[predUID]
			if !ok {
				s.warn(KindDependency, predUID+"->"+rec.UID, ReasonDanglingDependency)
				continue
			}
			if predID == succID {
				s.warn(KindDependency, predUID+"->"+rec.UID, ReasonSelfDependency)
				continue
			}

			linkType := 1
			if n, err := strconv.Atoi(strings.TrimSpace(link.Type)); err == nil {
				linkType = n
			}
			inserted, err := s.repo.InsertDependency(ctx, &model.TaskDependency{
				PredecessorID: predID,
				SuccessorID:   succID,
				Type:          linkType,
				Lag:           msproject.ParseLag(link.LinkLag),
			})
			if err != nil {
				return err
			}
			if inserted {
				s.result.Dependencies++
			} else {
				s.logger.Debug("Duplicate predecessor link ignored",
					zap.String("predecessor_uid", predUID),
					zap.String("successor_uid", rec.UID),
				)
			}
		}
	}
	return nil
}
