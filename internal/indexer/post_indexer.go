package indexer

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/follow"
	"github.com/golos/golosmind/internal/golosd"
)

// fetchedPost is the node's current copy of a dirty comment. A nil comment
// means the node no longer has it.
type fetchedPost struct {
	author   string
	permlink string
	comment  *chain.Comment
	votes    []chain.CommentVote
}

// PostIndexer refreshes comments touched by a block from the node.
type PostIndexer struct {
	node   Node
	db     *chain.Database
	follow *follow.Store
	logger *zap.Logger
	dirty  map[string][2]string
}

func NewPostIndexer(node Node, db *chain.Database, follows *follow.Store, logger *zap.Logger) *PostIndexer {
	return &PostIndexer{
		node:   node,
		db:     db,
		follow: follows,
		logger: logger,
		dirty:  make(map[string][2]string),
	}
}

// MarkDirty queues a comment for refresh.
func (pi *PostIndexer) MarkDirty(author, permlink string) {
	if author == "" || permlink == "" {
		return
	}
	pi.dirty[author+"/"+permlink] = [2]string{author, permlink}
}

// Fetch loads every queued comment with its votes and clears the queue.
// Parents come before their replies.
func (pi *PostIndexer) Fetch(ctx context.Context) ([]fetchedPost, error) {
	posts := make([]fetchedPost, 0, len(pi.dirty))
	for _, ref := range pi.dirty {
		post, err := pi.fetch(ctx, ref[0], ref[1])
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	pi.dirty = make(map[string][2]string)

	sort.Slice(posts, func(i, j int) bool {
		di, dj := depthOf(posts[i]), depthOf(posts[j])
		if di != dj {
			return di < dj
		}
		if posts[i].author != posts[j].author {
			return posts[i].author < posts[j].author
		}
		return posts[i].permlink < posts[j].permlink
	})
	return posts, nil
}

func depthOf(p fetchedPost) int {
	if p.comment == nil {
		return -1
	}
	return int(p.comment.Depth)
}

func (pi *PostIndexer) fetch(ctx context.Context, author, permlink string) (fetchedPost, error) {
	post := fetchedPost{author: author, permlink: permlink}
	content, err := pi.node.GetContent(ctx, author, permlink)
	if err != nil {
		return post, fmt.Errorf("get_content %s/%s: %w", author, permlink, err)
	}
	if content == nil {
		return post, nil
	}
	c, err := golosd.CommentFromContent(content)
	if err != nil {
		return post, fmt.Errorf("content %s/%s: %w", author, permlink, err)
	}
	post.comment = &c

	raw, err := pi.node.GetActiveVotes(ctx, author, permlink)
	if err != nil {
		return post, fmt.Errorf("get_active_votes %s/%s: %w", author, permlink, err)
	}
	for _, m := range raw {
		v, err := golosd.VoteFromActiveVote(m)
		if err != nil {
			pi.logger.Warn("Skipping malformed vote",
				zap.String("author", author),
				zap.String("permlink", permlink),
				zap.Error(err))
			continue
		}
		post.votes = append(post.votes, v)
	}
	return post, nil
}

// Apply stores the fetched comments and moves author reputation for the
// votes cast in the block. It must run inside a write session.
func (pi *PostIndexer) Apply(posts []fetchedPost, votes []voteOp) error {
	type voteKey struct{ voter, author, permlink string }
	old := make(map[voteKey]int64)
	for _, v := range votes {
		c, ok := pi.db.Comments.Find(v.Author, v.Permlink)
		if !ok {
			continue
		}
		if existing, ok := pi.db.Votes.ByCommentVoter.Find(&chain.CommentVote{Comment: c.ID, Voter: v.Voter}); ok {
			old[voteKey{v.Voter, v.Author, v.Permlink}] = existing.Rshares
		}
	}

	for _, post := range posts {
		if post.comment == nil {
			if _, ok := pi.db.Comments.Find(post.author, post.permlink); ok {
				if err := pi.db.RemoveComment(post.author, post.permlink); err != nil {
					return err
				}
				pi.logger.Debug("Removed post", zap.String("author", post.author), zap.String("permlink", post.permlink))
			}
			continue
		}
		c, err := pi.db.StoreComment(*post.comment)
		if err != nil {
			return fmt.Errorf("store %s/%s: %w", post.author, post.permlink, err)
		}
		if err := pi.db.StoreVotes(c, post.votes); err != nil {
			return fmt.Errorf("store votes of %s/%s: %w", post.author, post.permlink, err)
		}
	}

	if pi.follow == nil {
		return nil
	}
	for _, v := range votes {
		c, ok := pi.db.Comments.Find(v.Author, v.Permlink)
		if !ok {
			continue
		}
		current, ok := pi.db.Votes.ByCommentVoter.Find(&chain.CommentVote{Comment: c.ID, Voter: v.Voter})
		if !ok {
			continue
		}
		key := voteKey{v.Voter, v.Author, v.Permlink}
		var prev *int64
		if rshares, ok := old[key]; ok {
			prev = &rshares
		}
		if err := pi.follow.ApplyVote(v.Voter, v.Author, prev, current.Rshares); err != nil {
			return err
		}
		old[key] = current.Rshares
	}
	return nil
}
